package chardb

import (
	"database/sql"
	"fmt"

	"github.com/tidwall/sjson"
)

const schema = `
CREATE TABLE IF NOT EXISTS char_tables (
	key  TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	def  TEXT
);
CREATE TABLE IF NOT EXISTS char_ranges (
	key   TEXT NOT NULL,
	lo    INTEGER NOT NULL,
	hi    INTEGER NOT NULL,
	value TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS char_ranges_key ON char_ranges(key, lo);
`

// Compile writes sources into a compiled SQLite database at path,
// replacing any previous contents of each table's key.
func Compile(path string, sources []*Source) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("opening compiled database: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	for _, src := range sources {
		if _, err := tx.Exec("DELETE FROM char_ranges WHERE key = ?", src.Key); err != nil {
			return fmt.Errorf("clearing %s: %w", src.Key, err)
		}
		var def any
		if src.Default != "" {
			def = src.Default
		}
		_, err := tx.Exec(
			"INSERT OR REPLACE INTO char_tables (key, type, def) VALUES (?, ?, ?)",
			src.Key, src.Type.String(), def)
		if err != nil {
			return fmt.Errorf("writing %s: %w", src.Key, err)
		}
		for _, span := range src.Ranges {
			_, err := tx.Exec(
				"INSERT INTO char_ranges (key, lo, hi, value) VALUES (?, ?, ?, ?)",
				src.Key, int64(span.Lo), int64(span.Hi), span.Value)
			if err != nil {
				return fmt.Errorf("writing %s range %#x..%#x: %w", src.Key, span.Lo, span.Hi, err)
			}
		}
		log.Infof("compiled table %s: %d ranges", src.Key, len(src.Ranges))
	}
	return tx.Commit()
}

// ExportJSON renders a source back into the JSON file form, suitable for
// pulling a table out of a compiled database for editing.
func ExportJSON(src *Source) ([]byte, error) {
	out := []byte("{}")
	var err error
	if out, err = sjson.SetBytes(out, "key", src.Key); err != nil {
		return nil, err
	}
	if out, err = sjson.SetBytes(out, "type", src.Type.String()); err != nil {
		return nil, err
	}
	if src.Default != "" {
		if out, err = sjson.SetBytes(out, "default", src.Default); err != nil {
			return nil, err
		}
	}
	for i, span := range src.Ranges {
		base := fmt.Sprintf("ranges.%d", i)
		if span.Lo == span.Hi {
			out, err = sjson.SetBytes(out, base+".char", fmt.Sprintf("U+%04X", span.Lo))
		} else {
			if out, err = sjson.SetBytes(out, base+".from", fmt.Sprintf("U+%04X", span.Lo)); err != nil {
				return nil, err
			}
			out, err = sjson.SetBytes(out, base+".to", fmt.Sprintf("U+%04X", span.Hi))
		}
		if err != nil {
			return nil, err
		}
		if out, err = sjson.SetBytes(out, base+".value", span.Value); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ReadCompiled loads one table source out of a compiled database file
// without going through a DB directory. Used by the export tool.
func ReadCompiled(path, key string) (*Source, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening compiled database: %w", err)
	}
	defer db.Close()
	d := &DB{sqldb: db}
	return d.readCompiled(key)
}
