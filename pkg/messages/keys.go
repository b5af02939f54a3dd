package messages

// Catalog keys emitted by the wizard controller.
const (
	StepCode   = "step.code"
	StepUpload = "step.upload"
	StepResult = "step.result"

	CodeRequired = "code.required"
	CodeLength   = "code.length"

	VerifySuccess = "verify.success"
	VerifyFailed  = "verify.failed"
	VerifyNetwork = "verify.network"
	VerifyTimeout = "verify.timeout"

	QuotaRemaining     = "quota.remaining"
	QuotaExhausted     = "quota.exhausted"
	QuotaRefreshFailed = "quota.refresh_failed"

	ImageType     = "image.type"
	ImageSize     = "image.size"
	ImageEmpty    = "image.empty"
	ImageDecode   = "image.decode"
	ImageAccepted = "image.accepted"
	ImageRequired = "image.required"

	GenerateStarted      = "generate.started"
	GenerateSuccess      = "generate.success"
	GenerateBusy         = "generate.busy"
	GenerateFailed       = "generate.failed"
	GenerateConnectivity = "generate.connectivity"
	GenerateTimeout      = "generate.timeout"
	GenerateMalformed    = "generate.malformed"
	GenerateCanceled     = "generate.canceled"

	OptionInvalid = "option.invalid"

	DownloadSaved  = "download.saved"
	DownloadFailed = "download.failed"

	HistoryEmpty = "history.empty"
	HistoryEntry = "history.entry"
)

// ProgressKeys are shown in rotation while a portrait is being generated.
var ProgressKeys = []string{
	"progress.analyzing",
	"progress.lighting",
	"progress.portrait",
	"progress.rendering",
	"progress.finishing",
}
