package base

import "fmt"

// Canonical path scheme for a table item's files. All integers in the files
// these paths name are little-endian, fixed-width.

// DataPath returns the column data file path for (tableID, columnIndex, taskID).
func DataPath(tableID, columnIndex, taskID int32) string {
	return fmt.Sprintf("tables/%d/%d/%d.bin", tableID, columnIndex, taskID)
}

// MetadataPath returns the column metadata file path.
func MetadataPath(tableID, columnIndex, taskID int32) string {
	return fmt.Sprintf("tables/%d/%d/%d_metadata.bin", tableID, columnIndex, taskID)
}

// DescriptorPath returns the video descriptor file path.
func DescriptorPath(tableID, columnIndex, taskID int32) string {
	return fmt.Sprintf("tables/%d/%d/%d_descriptor.bin", tableID, columnIndex, taskID)
}

// TableColumnDir returns the directory holding every item of one column.
func TableColumnDir(tableID, columnIndex int32) string {
	return fmt.Sprintf("tables/%d/%d", tableID, columnIndex)
}
