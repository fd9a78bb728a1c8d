package emulation

import (
	"strconv"
	"unicode/utf8"

	vte "github.com/danielgatis/go-vte"
)

// =============================================================================
// Token types
// =============================================================================

// TokenKind identifies the type of a terminal event.
type TokenKind int

const (
	// TokenText is a printable character received via Print().
	TokenText TokenKind = iota

	// TokenNewline is a line feed (0x0a).
	TokenNewline

	// TokenReturn is a carriage return (0x0d). ssh prints prompts as
	// "\r\n...password: " on a pty, so it is kept rather than dropped.
	TokenReturn

	// TokenTab is a horizontal tab (0x09).
	TokenTab

	// TokenBackspace is a backspace (0x08). Erases the last rendered rune.
	TokenBackspace

	// TokenCursorForward moves the cursor N columns right (CSI <n> C).
	// Some terminals emit it instead of runs of spaces; it renders as a
	// single space so "terminal\x1b[2Ctype" still reads "terminal type".
	TokenCursorForward

	// TokenIgnored represents sequences that do not affect prompt text:
	// colours, OSC titles, erase sequences, unknown CSI/ESC sequences.
	TokenIgnored
)

// Token represents a single terminal event produced by the VTE parser.
type Token struct {
	Kind TokenKind

	// Rune holds the character for TokenText.
	Rune rune

	// N holds the repeat count for TokenCursorForward.
	N int
}

// String returns a human-readable representation of a Token for debugging.
func (t Token) String() string {
	switch t.Kind {
	case TokenText:
		return "Text(" + string(t.Rune) + ")"
	case TokenCursorForward:
		return "CursorForward(" + strconv.Itoa(t.N) + ")"
	default:
		return tokenKindString(t.Kind)
	}
}

func tokenKindString(k TokenKind) string {
	names := []string{
		"Text", "Newline", "Return", "Tab", "Backspace", "CursorForward", "Ignored",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "Unknown"
}

// =============================================================================
// Rendering
// =============================================================================

// Render turns tokens back into the text a reader of the terminal would see,
// appending to dst. Control characters that matter for line structure
// survive; every escape sequence is gone.
func Render(dst []byte, tokens []Token) []byte {
	for _, tok := range tokens {
		switch tok.Kind {
		case TokenText:
			dst = utf8.AppendRune(dst, tok.Rune)
		case TokenNewline:
			dst = append(dst, '\n')
		case TokenReturn:
			dst = append(dst, '\r')
		case TokenTab:
			dst = append(dst, '\t')
		case TokenBackspace:
			if len(dst) > 0 {
				_, size := utf8.DecodeLastRune(dst)
				dst = dst[:len(dst)-size]
			}
		case TokenCursorForward:
			if len(dst) == 0 || dst[len(dst)-1] != ' ' {
				dst = append(dst, ' ')
			}
		}
	}
	return dst
}

// decode parses raw terminal bytes with a fresh parser.
func decode(raw []byte) []Token {
	c := &tokenCollector{}
	parser := vte.NewParser(c)
	for _, b := range raw {
		parser.Advance(b)
	}
	return c.tokens
}

// visible decodes raw and renders the result in one call.
func visible(raw []byte) string {
	return string(Render(nil, decode(raw)))
}

// =============================================================================
// tokenCollector bridges vtparser callbacks to a Token slice.
// =============================================================================

type tokenCollector struct {
	tokens []Token
}

func (c *tokenCollector) append(t Token) {
	c.tokens = append(c.tokens, t)
}

func (c *tokenCollector) reset() {
	c.tokens = c.tokens[:0]
}

func (c *tokenCollector) Print(r rune) {
	c.append(Token{Kind: TokenText, Rune: r})
}

func (c *tokenCollector) Execute(b byte) {
	switch b {
	case '\n':
		c.append(Token{Kind: TokenNewline})
	case '\r':
		c.append(Token{Kind: TokenReturn})
	case '\t':
		c.append(Token{Kind: TokenTab})
	case 0x08:
		c.append(Token{Kind: TokenBackspace, N: 1})
	default:
		c.append(Token{Kind: TokenIgnored})
	}
}

func (c *tokenCollector) CsiDispatch(params [][]uint16, _ []byte, _ bool, r rune) {
	if r != 'C' {
		c.append(Token{Kind: TokenIgnored})
		return
	}
	n := 1
	if len(params) > 0 && len(params[0]) > 0 && params[0][0] > 0 {
		n = int(params[0][0])
	}
	c.append(Token{Kind: TokenCursorForward, N: n})
}

func (c *tokenCollector) EscDispatch(_ []byte, _ bool, _ byte) {
	c.append(Token{Kind: TokenIgnored})
}

func (c *tokenCollector) OscDispatch(_ [][]byte, _ bool) {
	c.append(Token{Kind: TokenIgnored})
}

// DCS payloads (tmux, screen passthrough) never carry prompts.
func (c *tokenCollector) Hook(_ [][]uint16, _ []byte, _ bool, _ rune)           {}
func (c *tokenCollector) Put(_ byte)                                            {}
func (c *tokenCollector) Unhook()                                               {}
func (c *tokenCollector) SosPmApcDispatch(_ vte.SosPmApcKind, _ []byte, _ bool) {}
