package milter

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/d--j/go-milter"
	log "github.com/sirupsen/logrus"

	"github.com/zpam/spamscan/pkg/config"
	"github.com/zpam/spamscan/pkg/email"
	"github.com/zpam/spamscan/pkg/scanner"
)

// Action is the verdict returned to the MTA
type Action int

const (
	ActionAccept Action = iota
	ActionQuarantine
	ActionReject
)

func (a Action) String() string {
	switch a {
	case ActionReject:
		return "reject"
	case ActionQuarantine:
		return "quarantine"
	default:
		return "accept"
	}
}

// Decide maps a scan result to an action. Only spam verdicts are acted on;
// a zero threshold disables that action.
func Decide(res *scanner.Result, cfg *config.MilterConfig) Action {
	if res == nil || !res.IsSpam {
		return ActionAccept
	}
	if cfg.RejectConfidence > 0 && res.Confidence >= cfg.RejectConfidence {
		return ActionReject
	}
	if cfg.QuarantineConfidence > 0 && res.Confidence >= cfg.QuarantineConfidence {
		return ActionQuarantine
	}
	return ActionAccept
}

// Handler implements the milter.Milter interface for one SMTP connection
type Handler struct {
	milter.NoOpMilter
	config  *config.MilterConfig
	scanner *scanner.Scanner
	parser  *email.Parser

	// Message being assembled during the milter session
	headers   bytes.Buffer
	body      bytes.Buffer
	truncated bool

	startTime time.Time
}

// NewHandler creates a new milter handler
func NewHandler(cfg *config.MilterConfig, s *scanner.Scanner) *Handler {
	parser := email.NewParser()
	parser.MaxPartBytes = int64(cfg.MaxBodyBytes)
	return &Handler{
		config:    cfg,
		scanner:   s,
		parser:    parser,
		startTime: time.Now(),
	}
}

func (h *Handler) reset() {
	h.headers.Reset()
	h.body.Reset()
	h.truncated = false
	h.startTime = time.Now()
}

// NewConnection is called when a new SMTP connection is established
func (h *Handler) NewConnection(m milter.Modifier) error {
	h.reset()
	return nil
}

// MailFrom starts a new message on the connection
func (h *Handler) MailFrom(from string, esmtpArgs string, m milter.Modifier) (*milter.Response, error) {
	h.reset()
	return milter.RespContinue, nil
}

// Header is called for each header
func (h *Handler) Header(name string, value string, m milter.Modifier) (*milter.Response, error) {
	h.headers.WriteString(name)
	h.headers.WriteString(": ")
	h.headers.WriteString(value)
	h.headers.WriteString("\r\n")
	return milter.RespContinue, nil
}

// BodyChunk is called for each body chunk
func (h *Handler) BodyChunk(chunk []byte, m milter.Modifier) (*milter.Response, error) {
	h.appendBody(chunk)
	return milter.RespContinue, nil
}

func (h *Handler) appendBody(chunk []byte) {
	if limit := h.config.MaxBodyBytes; limit > 0 {
		room := limit - h.body.Len()
		if room <= 0 {
			h.truncated = true
			return
		}
		if len(chunk) > room {
			chunk = chunk[:room]
			h.truncated = true
		}
	}
	h.body.Write(chunk)
}

// message reassembles the raw message seen so far
func (h *Handler) message() []byte {
	raw := make([]byte, 0, h.headers.Len()+2+h.body.Len())
	raw = append(raw, h.headers.Bytes()...)
	raw = append(raw, "\r\n"...)
	raw = append(raw, h.body.Bytes()...)
	return raw
}

// text extracts the scoring text, falling back to the raw body when the
// message cannot be parsed
func (h *Handler) text() string {
	parsed, err := h.parser.ParseBytes(h.message())
	if err != nil {
		log.WithError(err).Debug("milter message parse failed, scanning raw body")
		return h.body.String()
	}
	return parsed.Text()
}

// EndOfMessage scans the message and returns the verdict
func (h *Handler) EndOfMessage(m milter.Modifier) (*milter.Response, error) {
	res, err := h.scanner.Scan(h.text())
	if err != nil {
		log.WithError(err).Warn("milter scan skipped, accepting message")
		return milter.RespContinue, nil
	}

	action := Decide(res, h.config)
	log.WithFields(log.Fields{
		"is_spam":    res.IsSpam,
		"confidence": res.Confidence,
		"words":      res.SuspiciousWordCount,
		"action":     action.String(),
		"truncated":  h.truncated,
	}).Info("milter verdict")

	if h.config.AddSpamHeaders && action != ActionReject {
		for _, hdr := range spamHeaders(h.config.SpamHeaderPrefix, res, action, time.Since(h.startTime)) {
			if err := m.AddHeader(hdr[0], hdr[1]); err != nil {
				return milter.RespTempFail, fmt.Errorf("failed to add spam headers: %v", err)
			}
		}
	}

	switch action {
	case ActionReject:
		message := h.config.RejectMessage
		if message == "" {
			message = fmt.Sprintf("5.7.1 Message rejected as spam (confidence: %.4f)", res.Confidence)
		}
		resp, err := milter.RejectWithCodeAndReason(550, message)
		if err != nil {
			return milter.RespReject, nil
		}
		return resp, nil

	case ActionQuarantine:
		reason := h.config.QuarantineMessage
		if reason == "" {
			reason = fmt.Sprintf("spamscan quarantine (confidence: %.4f)", res.Confidence)
		}
		if err := m.Quarantine(reason); err != nil {
			return milter.RespTempFail, fmt.Errorf("failed to quarantine: %v", err)
		}
	}

	return milter.RespAccept, nil
}

// Abort is called when the message is aborted
func (h *Handler) Abort(m milter.Modifier) error {
	h.reset()
	return nil
}

// spamHeaders lists the headers describing a verdict
func spamHeaders(prefix string, res *scanner.Result, action Action, elapsed time.Duration) [][2]string {
	status := "Clean"
	if res.IsSpam {
		status = "Spam"
	}

	headers := [][2]string{
		{prefix + "Status", status},
		{prefix + "Confidence", fmt.Sprintf("%.4f", res.Confidence)},
		{prefix + "Action", action.String()},
	}
	if res.SuspiciousWordCount > 0 {
		headers = append(headers, [2]string{prefix + "Words", strings.Join(res.SuspiciousWordsFound, ", ")})
	}
	headers = append(headers, [2]string{prefix + "Info", fmt.Sprintf("spamscan; %.2fms", float64(elapsed.Microseconds())/1000)})
	return headers
}
