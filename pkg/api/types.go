package api

// Operation identifiers shared with the API contract document.
const (
	OperationVerify   = "verifyCode"
	OperationGenerate = "generatePortrait"
	OperationStatus   = "getStatus"
	OperationDownload = "downloadResult"
)

// StylePortrait is the only style the generation endpoint accepts.
const StylePortrait = "portrait"

// Quota is the usage allowance attached to an access code.
type Quota struct {
	Remaining int
	MaxUses   int
}

// Upload is the image part of a generation request.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

// GenerateRequest carries one portrait submission. Gender is optional and
// omitted from the payload when empty.
type GenerateRequest struct {
	Code            string
	Image           Upload
	Style           string
	Clothing        string
	Angle           string
	Background      string
	BackgroundColor string
	Gender          string
	Beautify        bool
}

// Generation is the outcome of a successful generate call.
type Generation struct {
	ResultURL string
	Remaining int
}

// HistoryEntry is one past generation reported by the status endpoint.
type HistoryEntry struct {
	Style  string `json:"style"`
	Time   string `json:"time"`
	Result string `json:"result"`
}

// Status is the outcome of a successful status call.
type Status struct {
	Quota
	History []HistoryEntry
}

type envelope interface {
	ok() bool
	serverMessage() string
}

type verifyPayload struct {
	Code string `json:"code"`
}

type verifyResponse struct {
	Success   bool   `json:"success"`
	Remaining *int   `json:"remaining,omitempty"`
	MaxUses   *int   `json:"max_uses,omitempty"`
	Message   string `json:"message,omitempty"`
}

func (r *verifyResponse) ok() bool              { return r.Success }
func (r *verifyResponse) serverMessage() string { return r.Message }

type generateResponse struct {
	Success   bool   `json:"success"`
	ResultURL string `json:"result_url,omitempty"`
	Remaining *int   `json:"remaining,omitempty"`
	Message   string `json:"message,omitempty"`
}

func (r *generateResponse) ok() bool              { return r.Success }
func (r *generateResponse) serverMessage() string { return r.Message }

type statusResponse struct {
	Success   bool           `json:"success"`
	Remaining *int           `json:"remaining,omitempty"`
	MaxUses   *int           `json:"max_uses,omitempty"`
	History   []HistoryEntry `json:"history,omitempty"`
	Message   string         `json:"message,omitempty"`
}

func (r *statusResponse) ok() bool              { return r.Success }
func (r *statusResponse) serverMessage() string { return r.Message }
