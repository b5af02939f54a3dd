package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/goliatone/go-portrait/internal/logging"
)

const (
	defaultRequestTimeout  = 30 * time.Second
	defaultGenerateTimeout = 150 * time.Second
	defaultUserAgent       = "go-portrait/1.0"

	maxResponseBytes = 1 << 20
	snippetBytes     = 500

	tracerName = "github.com/goliatone/go-portrait/pkg/api"
)

// Client talks to the portrait service: code verification, generation and
// quota status, plus downloading generated images.
type Client struct {
	base            *url.URL
	http            *http.Client
	logger          logrus.FieldLogger
	validator       ResponseValidator
	sanitizer       *bluemonday.Policy
	tracer          trace.Tracer
	userAgent       string
	requestTimeout  time.Duration
	generateTimeout time.Duration
	newRequestID    func() string
}

// New constructs a Client for the service rooted at baseURL.
func New(baseURL string, options ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return nil, errors.New("api: base url is required")
	}
	base, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("api: parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("api: unsupported base url scheme %q", base.Scheme)
	}

	c := &Client{
		base:            base,
		http:            &http.Client{},
		logger:          logging.Discard(),
		sanitizer:       bluemonday.StrictPolicy(),
		tracer:          otel.Tracer(tracerName),
		userAgent:       defaultUserAgent,
		requestTimeout:  defaultRequestTimeout,
		generateTimeout: defaultGenerateTimeout,
		newRequestID:    uuid.NewString,
	}

	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(c)
	}

	return c, nil
}

// Verify redeems an access code and returns its quota.
func (c *Client) Verify(ctx context.Context, code string) (Quota, error) {
	payload, err := json.Marshal(verifyPayload{Code: code})
	if err != nil {
		return Quota{}, newError(KindValidation, OperationVerify, "encode request", err)
	}

	var out verifyResponse
	err = c.call(ctx, call{
		op:          OperationVerify,
		method:      http.MethodPost,
		path:        "/api/verify",
		body:        payload,
		contentType: "application/json",
		timeout:     c.requestTimeout,
	}, &out)
	if err != nil {
		return Quota{}, err
	}
	if out.Remaining == nil {
		return Quota{}, newError(KindMalformed, OperationVerify, "response is missing remaining", nil)
	}

	quota := Quota{Remaining: *out.Remaining}
	if out.MaxUses != nil {
		quota.MaxUses = *out.MaxUses
	}
	return quota, nil
}

// Generate uploads the image with its styling options. The call is bounded by
// the generate timeout; when it expires the transfer is aborted.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (Generation, error) {
	body, contentType, err := encodeGenerateRequest(req)
	if err != nil {
		return Generation{}, newError(KindValidation, OperationGenerate, "encode request", err)
	}

	var out generateResponse
	err = c.call(ctx, call{
		op:          OperationGenerate,
		method:      http.MethodPost,
		path:        "/api/upload",
		body:        body,
		contentType: contentType,
		timeout:     c.generateTimeout,
	}, &out)
	if err != nil {
		return Generation{}, err
	}
	if strings.TrimSpace(out.ResultURL) == "" {
		return Generation{}, newError(KindMalformed, OperationGenerate, "response is missing result_url", nil)
	}
	if out.Remaining == nil {
		return Generation{}, newError(KindMalformed, OperationGenerate, "response is missing remaining", nil)
	}

	return Generation{ResultURL: out.ResultURL, Remaining: *out.Remaining}, nil
}

// Status fetches the current quota and generation history for a code.
func (c *Client) Status(ctx context.Context, code string) (Status, error) {
	var out statusResponse
	err := c.call(ctx, call{
		op:      OperationStatus,
		method:  http.MethodGet,
		path:    "/api/status/" + url.PathEscape(code),
		timeout: c.requestTimeout,
	}, &out)
	if err != nil {
		return Status{}, err
	}
	if out.Remaining == nil {
		return Status{}, newError(KindMalformed, OperationStatus, "response is missing remaining", nil)
	}

	status := Status{Quota: Quota{Remaining: *out.Remaining}, History: out.History}
	if out.MaxUses != nil {
		status.MaxUses = *out.MaxUses
	}
	return status, nil
}

// Download streams a generated image into w and returns the number of bytes
// written. resultURL may be relative to the service base URL.
func (c *Client) Download(ctx context.Context, resultURL string, w io.Writer) (int64, error) {
	if w == nil {
		return 0, newError(KindValidation, OperationDownload, "writer is required", nil)
	}
	target, err := c.resolve(resultURL)
	if err != nil {
		return 0, newError(KindValidation, OperationDownload, "invalid result url", err)
	}

	ctx, span := c.tracer.Start(ctx, "portrait."+OperationDownload, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	reqCtx := ctx
	if c.requestTimeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target, nil)
	if err != nil {
		return 0, c.fail(span, newError(KindValidation, OperationDownload, "build request", err))
	}
	c.decorate(reqCtx, req)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, c.fail(span, classifyTransport(ctx, reqCtx, OperationDownload, err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		e := newError(KindRejected, OperationDownload, http.StatusText(resp.StatusCode), nil)
		e.Status = resp.StatusCode
		return 0, c.fail(span, e)
	}
	if mediaType := mediaTypeOf(resp.Header.Get("Content-Type")); mediaType != "" && !isImageMediaType(mediaType) {
		return 0, c.fail(span, newError(KindMalformed, OperationDownload, "unexpected content type "+mediaType, nil))
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, c.fail(span, classifyTransport(ctx, reqCtx, OperationDownload, err))
	}
	return n, nil
}

type call struct {
	op          string
	method      string
	path        string
	body        []byte
	contentType string
	timeout     time.Duration
}

func (c *Client) call(ctx context.Context, spec call, out envelope) error {
	if ctx == nil {
		return newError(KindValidation, spec.op, "context is required", nil)
	}

	ctx, span := c.tracer.Start(ctx, "portrait."+spec.op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	reqCtx := ctx
	if spec.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, spec.timeout)
		defer cancel()
	}

	target, err := c.resolve(spec.path)
	if err != nil {
		return c.fail(span, newError(KindValidation, spec.op, "invalid endpoint", err))
	}

	var body io.Reader
	if spec.body != nil {
		body = bytes.NewReader(spec.body)
	}
	req, err := http.NewRequestWithContext(reqCtx, spec.method, target, body)
	if err != nil {
		return c.fail(span, newError(KindValidation, spec.op, "build request", err))
	}
	if spec.contentType != "" {
		req.Header.Set("Content-Type", spec.contentType)
	}
	req.Header.Set("Accept", "application/json")
	requestID := c.decorate(reqCtx, req)

	log := c.logger.WithFields(logrus.Fields{
		"op":         spec.op,
		"request_id": requestID,
	})
	span.SetAttributes(
		attribute.String("portrait.operation", spec.op),
		attribute.String("portrait.request_id", requestID),
	)
	started := time.Now()
	log.Debug("sending request")

	resp, err := c.http.Do(req)
	if err != nil {
		classified := classifyTransport(ctx, reqCtx, spec.op, err)
		log.WithField("kind", classified.Kind).WithError(err).Info("request failed")
		return c.fail(span, classified)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	log = log.WithFields(logrus.Fields{
		"status":  resp.StatusCode,
		"elapsed": time.Since(started).Round(time.Millisecond),
	})
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if !isJSONMediaType(resp.Header.Get("Content-Type")) {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, snippetBytes))
		log.WithFields(logrus.Fields{
			"content_type": resp.Header.Get("Content-Type"),
			"body":         string(snippet),
		}).Error("unexpected non-JSON response")
		e := newError(KindMalformed, spec.op, "unexpected content type "+resp.Header.Get("Content-Type"), nil)
		e.Status = resp.StatusCode
		return c.fail(span, e)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		classified := classifyTransport(ctx, reqCtx, spec.op, err)
		log.WithField("kind", classified.Kind).WithError(err).Info("reading response failed")
		return c.fail(span, classified)
	}

	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		log.WithError(err).WithField("body", truncate(string(raw), snippetBytes)).Error("response is not a JSON object")
		e := newError(KindMalformed, spec.op, "decode response", err)
		e.Status = resp.StatusCode
		return c.fail(span, e)
	}
	if c.validator != nil {
		if err := c.validator.ValidateResponse(spec.op, resp.StatusCode, generic); err != nil {
			log.WithError(err).Error("response violates contract")
			e := newError(KindMalformed, spec.op, "response violates contract", err)
			e.Status = resp.StatusCode
			return c.fail(span, e)
		}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		log.WithError(err).Error("decode response")
		e := newError(KindMalformed, spec.op, "decode response", err)
		e.Status = resp.StatusCode
		return c.fail(span, e)
	}

	if !out.ok() {
		message := c.sanitize(out.serverMessage())
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		log.WithField("message", message).Info("request rejected")
		e := newError(KindRejected, spec.op, message, nil)
		e.Status = resp.StatusCode
		return c.fail(span, e)
	}

	log.Debug("request succeeded")
	return nil
}

func (c *Client) decorate(ctx context.Context, req *http.Request) string {
	requestID := c.newRequestID()
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("User-Agent", c.userAgent)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	return requestID
}

func (c *Client) fail(span trace.Span, err *Error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(err.Kind))
	return err
}

func (c *Client) resolve(ref string) (string, error) {
	trimmed := strings.TrimSpace(ref)
	if trimmed == "" {
		return "", errors.New("empty reference")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", err
	}
	if parsed.IsAbs() {
		return parsed.String(), nil
	}
	resolved := *c.base
	resolved.Path = path.Join("/", c.base.Path, parsed.Path)
	resolved.RawPath = ""
	resolved.RawQuery = parsed.RawQuery
	return resolved.String(), nil
}

func (c *Client) sanitize(message string) string {
	cleaned := c.sanitizer.Sanitize(strings.TrimSpace(message))
	return strings.TrimSpace(html.UnescapeString(cleaned))
}

func classifyTransport(parent, reqCtx context.Context, op string, err error) *Error {
	switch {
	case errors.Is(parent.Err(), context.Canceled):
		return newError(KindCanceled, op, "request canceled", err)
	case errors.Is(reqCtx.Err(), context.DeadlineExceeded):
		return newError(KindTimeout, op, "request timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newError(KindTimeout, op, "request timed out", err)
	}
	return newError(KindConnectivity, op, "cannot reach server", err)
}

func encodeGenerateRequest(req GenerateRequest) ([]byte, string, error) {
	if len(req.Image.Data) == 0 {
		return nil, "", errors.New("image payload is empty")
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	name := req.Image.Name
	if name == "" {
		name = "upload"
	}
	contentType := req.Image.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, path.Base(name)))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(req.Image.Data); err != nil {
		return nil, "", err
	}

	style := req.Style
	if style == "" {
		style = StylePortrait
	}
	beautify := "no"
	if req.Beautify {
		beautify = "yes"
	}

	fields := []struct{ key, value string }{
		{"code", req.Code},
		{"style", style},
		{"clothing", req.Clothing},
		{"angle", req.Angle},
		{"background", req.Background},
		{"bgColor", req.BackgroundColor},
		{"beautify", beautify},
	}
	if req.Gender != "" {
		fields = append(fields, struct{ key, value string }{"gender", req.Gender})
	}
	for _, field := range fields {
		if err := writer.WriteField(field.key, field.value); err != nil {
			return nil, "", err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), writer.FormDataContentType(), nil
}

func mediaTypeOf(header string) string {
	if strings.TrimSpace(header) == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(header))
	}
	return strings.ToLower(mediaType)
}

func isJSONMediaType(header string) bool {
	mediaType := mediaTypeOf(header)
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

func isImageMediaType(mediaType string) bool {
	return strings.HasPrefix(mediaType, "image/") || mediaType == "application/octet-stream"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
