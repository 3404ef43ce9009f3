package ui

// Features gates optional surfaces. All default to false.
type Features struct {
	Debug     bool // diagnostic overlay, dev environment only
	Search    bool // remote search overlay
	PhoneForm bool // phone editor for the selected row
}
