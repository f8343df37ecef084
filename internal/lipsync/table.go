package lipsync

// ShapeTable maps phoneme symbols to the three visible mouth shapes, with
// "" marking silence. The table contents are hand-tuned configuration
// data; Lookup only supplies the unknown-phoneme fallback.
type ShapeTable map[string]string

// Lookup resolves a phoneme. Symbols present in the table return their
// mapped shape (possibly silence); unknown symbols fall back to "a".
func (t ShapeTable) Lookup(phoneme string) string {
	if shape, ok := t[phoneme]; ok {
		return shape
	}
	return "a"
}
