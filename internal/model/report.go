package model

// ImportSummary holds the row counts of a bulk import.
// TotalProcessed always equals Successful + Failed + the report's DuplicatesSkipped.
// Blank lines of a table payload are not processed and are counted separately.
type ImportSummary struct {
	TotalProcessed int `json:"total_processed"`
	Successful     int `json:"successful"`
	Failed         int `json:"failed"`
}

// RowFailure lists every problem found on one input row.
type RowFailure struct {
	Errors []string `json:"errors"`
	Row    int      `json:"row"`
}

// RowDuplicate identifies an input row skipped as a duplicate.
type RowDuplicate struct {
	Company  string `json:"company"`
	Position string `json:"position"`
	Row      int    `json:"row"`
}

// ImportedRow describes an accepted input row.
type ImportedRow struct {
	Company       string `json:"company"`
	Position      string `json:"position"`
	Status        Status `json:"status"`
	Row           int    `json:"row"`
	ApplicationID int64  `json:"application_id"`
	XPGained      int    `json:"xp_gained"`
}

// ImportReport is the result of one bulk import call.
type ImportReport struct {
	ImportID          string         `json:"import_id"`
	NewAchievements   []Achievement  `json:"new_achievements"`
	FailedImports     []RowFailure   `json:"failed_imports"`
	SuccessfulImports []ImportedRow  `json:"successful_imports"`
	Duplicates        []RowDuplicate `json:"duplicates"`
	Summary           ImportSummary  `json:"summary"`
	DuplicatesSkipped int            `json:"duplicates_skipped"`
	BlankRowsSkipped  int            `json:"blank_rows_skipped"`
	TotalXPGained     int            `json:"total_xp_gained"`
	AchievementXP     int            `json:"achievement_xp"`
	FinalXP           int            `json:"final_xp"`
	FinalLevel        int            `json:"final_level"`
}
