package excel

// ReaderConfig controls how spreadsheet cells become table values
type ReaderConfig struct {
	// Sheet is the worksheet read from XLSX files; empty selects the first sheet
	Sheet string `json:"sheet"`
	// InferNumbers turns cells that parse as finite numbers into numeric values
	InferNumbers bool `json:"infer_numbers"`
	// TrimSpace trims header names and cell text
	TrimSpace bool `json:"trim_space"`
}

// DefaultReaderConfig returns sensible defaults for spreadsheet import
func DefaultReaderConfig() ReaderConfig {
	return ReaderConfig{
		InferNumbers: true,
		TrimSpace:    true,
	}
}
