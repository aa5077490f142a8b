package main

import (
	"fmt"
	"io"

	"github.com/jrsteele09/go-storefront-gateway/session"
)

const (
	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Blue    = "\033[34m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"
	Gray    = "\033[90m" // Bright black, often appears as gray

	RedInverse = "\033[7;31m"

	ResetColor = "\033[0m" // Reset to default color
)

var methodColors = map[string]string{
	"GET":    Green,
	"POST":   Blue,
	"PUT":    Cyan,
	"DELETE": Yellow,
	"PATCH":  Magenta,
}

var stateColors = map[session.Kind]string{
	session.Loading:         Gray,
	session.Authenticated:   Green,
	session.Unauthenticated: Yellow,
	session.SessionExpired:  RedInverse,
	session.DataLoadError:   Red,
}

func colour(c, text string) string {
	if c == "" {
		return text
	}
	return c + text + ResetColor
}

// printState writes one line describing s
func printState(w io.Writer, realm string, s session.State) {
	line := fmt.Sprintf("[%s] %s", realm, colour(stateColors[s.Kind], s.Kind.String()))
	switch {
	case s.Principal != nil:
		who := s.Principal.Email
		if who == "" {
			who = s.Principal.ID
		}
		if s.Principal.Role != "" {
			who += " (" + s.Principal.Role + ")"
		}
		line += " " + who
	case s.Message != "":
		line += ": " + s.Message
	}
	fmt.Fprintln(w, line)
}
