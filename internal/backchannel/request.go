// Package backchannel implements the SQRL client-to-server exchange: request
// parsing, signature checks, command processing and reply encoding.
package backchannel

import (
	"crypto/ed25519"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/dtroode/sqrl-server/internal/base64url"
	"github.com/dtroode/sqrl-server/internal/model"
	"github.com/dtroode/sqrl-server/internal/signature"
)

// Command is a client command.
type Command string

const (
	CommandQuery   Command = "query"
	CommandIdent   Command = "ident"
	CommandEnable  Command = "enable"
	CommandDisable Command = "disable"
	CommandRemove  Command = "remove"
)

var knownCommands = map[Command]struct{}{
	CommandQuery:   {},
	CommandIdent:   {},
	CommandEnable:  {},
	CommandDisable: {},
	CommandRemove:  {},
}

// Option is a client option from the opt field.
type Option string

const (
	OptionSqrlOnly Option = "sqrlonly"
	OptionHardlock Option = "hardlock"
	OptionCPS      Option = "cps"
	OptionSuk      Option = "suk"
	OptionNoIPTest Option = "noiptest"
)

var knownOptions = map[Option]struct{}{
	OptionSqrlOnly: {},
	OptionHardlock: {},
	OptionCPS:      {},
	OptionSuk:      {},
	OptionNoIPTest: {},
}

// Form field names.
const (
	FieldClient = "client"
	FieldServer = "server"
	FieldIds    = "ids"
	FieldPids   = "pids"
	FieldUrs    = "urs"
)

// Structural limits on the wire values.
const (
	MaxClientLength = 4096
	MaxServerLength = 8192
	MaxBlockLines   = 32
	MaxButton       = 2
)

// ProtocolVersion is the only protocol version the server speaks.
const ProtocolVersion = "1"

// ClientBlock is the decoded client parameter.
type ClientBlock struct {
	Versions string
	Command  Command
	Idk      string
	Pidk     string
	Suk      string
	Vuk      string
	Options  map[Option]bool
	// Button is -1 when the client sent no btn.
	Button int
}

// Request is a parsed back-channel request. The raw client and server values
// are kept verbatim because the signatures cover them, not the decoded forms.
type Request struct {
	Client    ClientBlock
	ClientRaw string
	ServerRaw string
	// ServerURL is set when the client echoed the original sqrl:// URL.
	ServerURL *url.URL
	// PreviousReply is set when the client echoed a previous server reply.
	PreviousReply map[string]string
	// Nut is the nut the client is answering, taken from the server value.
	Nut  string
	Ids  []byte
	Pids []byte
	Urs  []byte
}

// HasOption reports whether the client sent opt.
func (r *Request) HasOption(opt Option) bool {
	return r.Client.Options[opt]
}

// SignedMessage returns the bytes covered by ids, pids and urs.
func (r *Request) SignedMessage() []byte {
	return []byte(r.ClientRaw + r.ServerRaw)
}

// Parser turns back-channel form values into Requests.
type Parser struct {
	signer *signature.Signer
}

// NewParser creates a Parser. The signer verifies previous replies echoed in
// the server field; with a nil signer those signatures are not checked.
func NewParser(signer *signature.Signer) *Parser {
	return &Parser{signer: signer}
}

// Parse validates the structure of a request. It does not verify client signatures.
func (p *Parser) Parse(form url.Values) (*Request, error) {
	clientRaw := strings.TrimSpace(form.Get(FieldClient))
	serverRaw := strings.TrimSpace(form.Get(FieldServer))
	idsRaw := strings.TrimSpace(form.Get(FieldIds))

	switch {
	case clientRaw == "":
		return nil, model.NewInvalidRequest(FieldClient, "missing")
	case serverRaw == "":
		return nil, model.NewInvalidRequest(FieldServer, "missing")
	case idsRaw == "":
		return nil, model.NewInvalidRequest(FieldIds, "missing")
	case len(clientRaw) > MaxClientLength:
		return nil, model.NewInvalidRequest(FieldClient, "too long")
	case len(serverRaw) > MaxServerLength:
		return nil, model.NewInvalidRequest(FieldServer, "too long")
	}

	req := &Request{ClientRaw: clientRaw, ServerRaw: serverRaw}

	clientBlock, err := decodeField(FieldClient, clientRaw)
	if err != nil {
		return nil, err
	}
	if req.Client, err = parseClientBlock(string(clientBlock)); err != nil {
		return nil, err
	}

	if err := p.parseServer(req); err != nil {
		return nil, err
	}

	if req.Ids, err = decodeSignature(FieldIds, idsRaw); err != nil {
		return nil, err
	}

	pidsRaw := strings.TrimSpace(form.Get(FieldPids))
	switch {
	case req.Client.Pidk != "" && pidsRaw == "":
		return nil, model.NewInvalidRequest(FieldPids, "required when pidk is present")
	case req.Client.Pidk == "" && pidsRaw != "":
		return nil, model.NewInvalidRequest(FieldPids, "present without pidk")
	case pidsRaw != "":
		if req.Pids, err = decodeSignature(FieldPids, pidsRaw); err != nil {
			return nil, err
		}
	}

	if ursRaw := strings.TrimSpace(form.Get(FieldUrs)); ursRaw != "" {
		if req.Urs, err = decodeSignature(FieldUrs, ursRaw); err != nil {
			return nil, err
		}
	}

	return req, nil
}

func (p *Parser) parseServer(req *Request) error {
	decoded, err := decodeField(FieldServer, req.ServerRaw)
	if err != nil {
		return err
	}
	server := string(decoded)

	if strings.HasPrefix(server, "sqrl://") || strings.HasPrefix(server, "qrl://") {
		u, err := url.Parse(server)
		if err != nil {
			return model.NewInvalidRequest(FieldServer, "malformed url")
		}
		req.ServerURL = u
		req.Nut = u.Query().Get("nut")
	} else {
		reply, err := ParseReplyBlock(server, p.signer)
		if err != nil {
			return err
		}
		req.PreviousReply = reply
		req.Nut = reply["nut"]
	}

	if req.Nut == "" {
		return model.NewInvalidRequest(FieldServer, "no nut")
	}
	return nil
}

func parseClientBlock(block string) (ClientBlock, error) {
	values, err := parseNameValueBlock(FieldClient, block)
	if err != nil {
		return ClientBlock{}, err
	}

	c := ClientBlock{
		Versions: values["ver"],
		Command:  Command(values["cmd"]),
		Idk:      values["idk"],
		Pidk:     values["pidk"],
		Suk:      values["suk"],
		Vuk:      values["vuk"],
		Options:  make(map[Option]bool),
		Button:   -1,
	}

	if c.Versions == "" {
		return ClientBlock{}, model.NewInvalidRequest("ver", "missing")
	}
	if !supportsVersion(c.Versions, ProtocolVersion) {
		return ClientBlock{}, model.NewInvalidRequest("ver", "no supported version in "+c.Versions)
	}

	if c.Command == "" {
		return ClientBlock{}, model.NewInvalidRequest("cmd", "missing")
	}
	if _, ok := knownCommands[c.Command]; !ok {
		return ClientBlock{}, &model.UnsupportedCommandError{Command: string(c.Command)}
	}

	if c.Idk == "" {
		return ClientBlock{}, model.NewInvalidRequest("idk", "missing")
	}
	for name, key := range map[string]string{"idk": c.Idk, "pidk": c.Pidk, "suk": c.Suk, "vuk": c.Vuk} {
		if key == "" {
			continue
		}
		if err := checkKey(name, key); err != nil {
			return ClientBlock{}, err
		}
	}
	if c.Pidk != "" && c.Pidk == c.Idk {
		return ClientBlock{}, model.NewInvalidRequest("pidk", "equals idk")
	}
	if (c.Suk != "" || c.Vuk != "") && c.Command != CommandIdent {
		return ClientBlock{}, model.NewInvalidRequest("suk", "only allowed with ident")
	}

	if opts := values["opt"]; opts != "" {
		for _, token := range strings.FieldsFunc(opts, func(r rune) bool { return r == '~' || r == ',' }) {
			opt := Option(strings.TrimSpace(token))
			// unknown options are ignored
			if _, ok := knownOptions[opt]; ok {
				c.Options[opt] = true
			}
		}
	}

	if btn, ok := values["btn"]; ok {
		n, err := strconv.Atoi(btn)
		if err != nil || n < 0 || n > MaxButton {
			return ClientBlock{}, model.NewInvalidRequest("btn", "out of range")
		}
		c.Button = n
	}

	return c, nil
}

// supportsVersion checks a ver list such as "1", "1,2" or "1-3".
func supportsVersion(list, version string) bool {
	want, err := strconv.Atoi(version)
	if err != nil {
		return false
	}
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		lo, hi, isRange := strings.Cut(item, "-")
		if !isRange {
			hi = lo
		}
		from, errLo := strconv.Atoi(lo)
		to, errHi := strconv.Atoi(hi)
		if errLo == nil && errHi == nil && from <= want && want <= to {
			return true
		}
	}
	return false
}

func checkKey(field, encoded string) error {
	key, err := base64url.Decode(encoded)
	if err != nil {
		return model.NewInvalidRequest(field, "not base64url")
	}
	if len(key) != ed25519.PublicKeySize {
		return model.NewInvalidRequest(field, fmt.Sprintf("must be %d bytes", ed25519.PublicKeySize))
	}
	return nil
}

func decodeField(field, value string) ([]byte, error) {
	b, err := base64url.Decode(value)
	if err != nil {
		return nil, model.NewInvalidRequest(field, "not base64url")
	}
	return b, nil
}

func decodeSignature(field, value string) ([]byte, error) {
	sig, err := decodeField(field, value)
	if err != nil {
		return nil, err
	}
	if len(sig) != ed25519.SignatureSize {
		return nil, model.NewInvalidRequest(field, fmt.Sprintf("must be %d bytes", ed25519.SignatureSize))
	}
	return sig, nil
}

// parseNameValueBlock splits a CRLF (or LF) delimited name=value block.
func parseNameValueBlock(field, block string) (map[string]string, error) {
	lines := strings.Split(strings.ReplaceAll(block, "\r\n", "\n"), "\n")
	if len(lines) > MaxBlockLines {
		return nil, model.NewInvalidRequest(field, "too many lines")
	}

	values := make(map[string]string, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		name, value, ok := strings.Cut(line, "=")
		if !ok || name == "" {
			return nil, model.NewInvalidRequest(field, "malformed line")
		}
		if _, dup := values[name]; dup {
			return nil, model.NewInvalidRequest(field, "duplicate "+name)
		}
		values[name] = value
	}
	return values, nil
}

// VerifyIdentitySignatures checks ids under idk and, when present, pids under pidk.
func VerifyIdentitySignatures(req *Request) error {
	msg := req.SignedMessage()

	if ok, err := verifyUnder(req.Ids, msg, req.Client.Idk); err != nil || !ok {
		return &model.SignatureError{Which: FieldIds}
	}
	if req.Client.Pidk != "" {
		if ok, err := verifyUnder(req.Pids, msg, req.Client.Pidk); err != nil || !ok {
			return &model.SignatureError{Which: FieldPids}
		}
	}
	return nil
}

// VerifyUnlockRequestSignature checks urs under the identity's stored vuk.
func VerifyUnlockRequestSignature(req *Request, vuk string) bool {
	if len(req.Urs) == 0 || vuk == "" {
		return false
	}
	ok, err := verifyUnder(req.Urs, req.SignedMessage(), vuk)
	return err == nil && ok
}

func verifyUnder(sig, msg []byte, encodedKey string) (bool, error) {
	key, err := base64url.Decode(encodedKey)
	if err != nil {
		return false, err
	}
	return signature.VerifyEd25519(sig, msg, key)
}
