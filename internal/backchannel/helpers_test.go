package backchannel

import (
	"bytes"
	"crypto/ed25519"
	"net/url"
	"strings"

	"github.com/dtroode/sqrl-server/internal/base64url"
)

type keyPair struct {
	priv ed25519.PrivateKey
	pub  string
}

func newKeyPair(seed byte) keyPair {
	priv := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{seed}, ed25519.SeedSize))
	return keyPair{priv: priv, pub: base64url.Encode(priv.Public().(ed25519.PublicKey))}
}

func (k keyPair) sign(msg string) string {
	return base64url.Encode(ed25519.Sign(k.priv, []byte(msg)))
}

type clientRequest struct {
	cmd    string
	ver    string
	idk    keyPair
	pidk   *keyPair
	suk    string
	vuk    string
	opt    string
	btn    string
	server string
	urs    *keyPair
}

func (c clientRequest) clientBlock() string {
	var b strings.Builder
	ver := c.ver
	if ver == "" {
		ver = "1"
	}
	b.WriteString("ver=" + ver + "\r\n")
	b.WriteString("cmd=" + c.cmd + "\r\n")
	b.WriteString("idk=" + c.idk.pub + "\r\n")
	if c.pidk != nil {
		b.WriteString("pidk=" + c.pidk.pub + "\r\n")
	}
	if c.suk != "" {
		b.WriteString("suk=" + c.suk + "\r\n")
	}
	if c.vuk != "" {
		b.WriteString("vuk=" + c.vuk + "\r\n")
	}
	if c.opt != "" {
		b.WriteString("opt=" + c.opt + "\r\n")
	}
	if c.btn != "" {
		b.WriteString("btn=" + c.btn + "\r\n")
	}
	return b.String()
}

// form builds a fully signed back-channel form.
func (c clientRequest) form() url.Values {
	client := base64url.EncodeString(c.clientBlock())
	server := base64url.EncodeString(c.server)
	msg := client + server

	form := url.Values{}
	form.Set(FieldClient, client)
	form.Set(FieldServer, server)
	form.Set(FieldIds, c.idk.sign(msg))
	if c.pidk != nil {
		form.Set(FieldPids, c.pidk.sign(msg))
	}
	if c.urs != nil {
		form.Set(FieldUrs, c.urs.sign(msg))
	}
	return form
}

// sukValue is a 32 byte opaque server unlock key.
func sukValue(seed byte) string {
	return base64url.Encode(bytes.Repeat([]byte{seed}, 32))
}
