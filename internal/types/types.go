// Package types defines core data types and enums shared across the
// book-binder pipeline.
package types

// OutputMode selects the artifact the pipeline produces.
type OutputMode string

const (
	// ModePDF produces a single trimmed PDF with no gutter shift.
	ModePDF OutputMode = "pdf"
	// ModeBooklet produces a print-ready PDF with binding gutter.
	ModeBooklet OutputMode = "booklet"
	// ModeNewspaper produces an N-up imposed PDF from narrow columns.
	ModeNewspaper OutputMode = "newspaper"
	// ModeODT produces an office document via an external converter.
	ModeODT OutputMode = "odt"
	// ModeEpub produces an e-book via an external converter.
	ModeEpub OutputMode = "epub"
)

// TextDirection is the writing direction of the book.
type TextDirection string

const (
	DirectionLTR TextDirection = "LTR"
	DirectionRTL TextDirection = "RTL"
)

// JobRequest carries all per-job parameters. It is built once by the
// caller and never mutated by the pipeline, so concurrent jobs with
// different parameters cannot interfere.
type JobRequest struct {
	BookRef     string     `json:"book_ref"`     // bookizip/epub path or book id on the package server
	Mode        OutputMode `json:"mode"`
	PageSize    string     `json:"page_size"`    // named size from the catalogue, e.g. "A5"
	TrimWidth   float64    `json:"trim_width"`   // points; overrides PageSize when > 0
	TrimHeight  float64    `json:"trim_height"`  // points
	Gutter      float64    `json:"gutter"`       // points; <= 0 means catalogue default
	RotateFlip  bool       `json:"rotate_flip"`  // reversed binding: rotate merged output 180°
	NUp         int        `json:"n_up"`         // newspaper mode: pages per imposed sheet
	ColumnWidth float64    `json:"column_width"` // points; newspaper mode body column width
	OutputPath  string     `json:"output_path"`
}

// JobPhase is a stage of the conversion pipeline state machine.
type JobPhase string

const (
	PhaseIdle              JobPhase = "idle"
	PhaseFetch             JobPhase = "fetch"
	PhasePlan              JobPhase = "plan"
	PhaseRenderBody        JobPhase = "render_body"
	PhaseExtractOutline    JobPhase = "extract_outline"
	PhaseBuildTOC          JobPhase = "build_toc"
	PhaseRenderPreliminary JobPhase = "render_preliminary"
	PhaseGeometryBody      JobPhase = "geometry_body"
	PhaseImpose            JobPhase = "impose"
	PhaseGeometryFront     JobPhase = "geometry_front"
	PhaseNumberFront       JobPhase = "number_front"
	PhaseNumberBody        JobPhase = "number_body"
	PhaseMerge             JobPhase = "merge"
	PhaseRotate            JobPhase = "rotate"
	PhaseExport            JobPhase = "export"
	PhaseDone              JobPhase = "done"
	PhaseFailed            JobPhase = "failed"
)

// Status reports pipeline progress to the caller.
type Status struct {
	Phase    JobPhase `json:"phase"`
	Progress int      `json:"progress"` // 0-100
	Message  string   `json:"message"`
	Error    string   `json:"error,omitempty"`
}

// JobResult is the outcome of one conversion job.
type JobResult struct {
	ArtifactPath string     `json:"artifact_path"`
	Format       OutputMode `json:"format"`
	Done         bool       `json:"done"`
	FailedStage  JobPhase   `json:"failed_stage,omitempty"`
	Diagnostic   string     `json:"diagnostic,omitempty"`
	FrontPages   int        `json:"front_pages"`
	BodyPages    int        `json:"body_pages"`
	TotalPages   int        `json:"total_pages"`
}

// Config is the persisted application configuration.
type Config struct {
	TmpRoot         string `json:"tmp_root"`          // root for per-job scratch directories
	CacheDir        string `json:"cache_dir"`         // font list and sample sheet cache
	PackageServer   string `json:"package_server"`    // default book package server
	WkhtmltopdfPath string `json:"wkhtmltopdf_path"`
	XvfbPath        string `json:"xvfb_path"`
	SofficePath     string `json:"soffice_path"`
	EbookConvert    string `json:"ebook_convert_path"`
	ToolTimeoutSecs int    `json:"tool_timeout_secs"` // bound on every external tool invocation
	DefaultPageSize string `json:"default_page_size"`
	KeepScratch     bool   `json:"keep_scratch"` // keep job scratch dirs for debugging
}

// ErrorCode classifies pipeline failures.
type ErrorCode string

const (
	ErrRender            ErrorCode = "RENDER_ERROR"
	ErrExtraction        ErrorCode = "EXTRACTION_ERROR"
	ErrGeometry          ErrorCode = "GEOMETRY_ERROR"
	ErrNumberingMismatch ErrorCode = "NUMBERING_MISMATCH"
	ErrTool              ErrorCode = "TOOL_ERROR"
	ErrNetwork           ErrorCode = "NETWORK_ERROR"
	ErrDownload          ErrorCode = "DOWNLOAD_ERROR"
	ErrExtract           ErrorCode = "EXTRACT_ERROR"
	ErrFileNotFound      ErrorCode = "FILE_NOT_FOUND"
	ErrInvalidInput      ErrorCode = "INVALID_INPUT"
	ErrConfig            ErrorCode = "CONFIG_ERROR"
	ErrInternal          ErrorCode = "INTERNAL_ERROR"
)

// AppError is the application error type carrying a code and an
// optional captured diagnostic (external tool output, usually).
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Cause   error     `json:"-"`
}

// Error implements the error interface for AppError
func (e *AppError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

// Unwrap returns the underlying cause of the error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new AppError with the given code, message, and optional cause
func NewAppError(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewAppErrorWithDetails creates a new AppError with captured diagnostic details
func NewAppErrorWithDetails(code ErrorCode, message, details string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
		Cause:   cause,
	}
}
