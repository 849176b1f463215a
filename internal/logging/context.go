package logging

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldLibrary is the standardized structured logging key for library path names.
	FieldLibrary = "library"
	// FieldScanID is the standardized structured logging key for scan identifiers.
	FieldScanID = "scan_id"
	// FieldOperationID is the standardized structured logging key for progress operation ids.
	FieldOperationID = "operation_id"
	// FieldFile is the standardized structured logging key for the file currently processed.
	FieldFile = "file"
	// FieldClient is the standardized structured logging key for playback client names.
	FieldClient = "client"
)
