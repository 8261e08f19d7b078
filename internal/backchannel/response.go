package backchannel

import (
	"strings"

	"github.com/dtroode/sqrl-server/internal/base64url"
	"github.com/dtroode/sqrl-server/internal/model"
	"github.com/dtroode/sqrl-server/internal/signature"
)

const lineEnd = "\r\n"

// Reply is the server's answer to a client command.
type Reply struct {
	Nut string
	Tif Tif
	// Qry is the path and query the client posts its next command to.
	Qry string
	// FriendlyName is sent as sfn when set.
	FriendlyName string
	Suk          string
	URL          string
	// Ask is the plain prompt text, "message~button1~button2".
	Ask string
}

// Encoder serialises and signs replies.
type Encoder struct {
	signer *signature.Signer
}

// NewEncoder creates an Encoder. With a nil signer replies carry no sig line.
func NewEncoder(signer *signature.Signer) *Encoder {
	return &Encoder{signer: signer}
}

// Block returns the plain name=value form of r, including sig.
func (e *Encoder) Block(r Reply) string {
	var b strings.Builder
	line := func(name, value string) {
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(value)
		b.WriteString(lineEnd)
	}

	line("ver", ProtocolVersion)
	line("nut", r.Nut)
	line("tif", r.Tif.Hex())
	line("qry", r.Qry)
	if r.FriendlyName != "" {
		line("sfn", base64url.EncodeString(r.FriendlyName))
	}
	if r.Suk != "" {
		line("suk", r.Suk)
	}
	if r.URL != "" {
		line("url", r.URL)
	}
	if r.Ask != "" {
		line("ask", base64url.EncodeString(r.Ask))
	}
	if e.signer != nil {
		line("sig", base64url.Encode(e.signer.Sign([]byte(b.String()))))
	}
	return b.String()
}

// Encode returns the wire form of r.
func (e *Encoder) Encode(r Reply) string {
	return base64url.EncodeString(e.Block(r))
}

// ParseReplyBlock parses a previous reply echoed by the client. When signer is
// set the trailing sig line must verify over everything before it.
func ParseReplyBlock(block string, signer *signature.Signer) (map[string]string, error) {
	values, err := parseNameValueBlock(FieldServer, block)
	if err != nil {
		return nil, err
	}
	if values["ver"] == "" {
		return nil, model.NewInvalidRequest(FieldServer, "not a sqrl url or reply")
	}
	if signer == nil {
		return values, nil
	}

	idx := strings.LastIndex(block, "sig=")
	if idx < 0 || (idx > 0 && block[idx-1] != '\n') || strings.Contains(strings.TrimRight(block[idx:], lineEnd), "\n") {
		return nil, &model.SignatureError{Which: FieldServer}
	}
	sig, err := base64url.Decode(values["sig"])
	if err != nil || !signer.Verify([]byte(block[:idx]), sig) {
		return nil, &model.SignatureError{Which: FieldServer}
	}
	return values, nil
}
