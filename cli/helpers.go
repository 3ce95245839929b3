package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"
)

const (
	dirName  = ".keyvault"
	fileName = "keyvault.env"
)

// Dir returns ~/.keyvault, creating it when missing.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	dir := filepath.Join(home, dirName)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	return dir, nil
}

func VaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// TerminalPrompter talks to the user through a terminal. Passwords are read
// without echo when in is a terminal and as plain lines otherwise, so input
// can be piped in scripts.
type TerminalPrompter struct {
	in  *bufio.Reader
	fd  int
	tty bool
	out io.Writer
}

func NewTerminalPrompter(in *os.File, out io.Writer) *TerminalPrompter {
	fd := int(in.Fd())
	return &TerminalPrompter{
		in:  bufio.NewReader(in),
		fd:  fd,
		tty: term.IsTerminal(fd),
		out: out,
	}
}

func (p *TerminalPrompter) ReadPassword(prompt string) ([]byte, error) {
	fmt.Fprint(p.out, prompt)
	if !p.tty {
		line, err := p.readLine()
		return []byte(line), err
	}
	pw, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out)
	return pw, err
}

func (p *TerminalPrompter) ReadLine(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	return p.readLine()
}

func (p *TerminalPrompter) Notify(msg string) {
	fmt.Fprintln(p.out, msg)
}

func (p *TerminalPrompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
