package tableau

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/ppiankov/tabspectre/internal/apierr"
)

// CredentialsInteractive walks the user through authentication setup on the
// terminal. Secrets are read without echo when stdin is a terminal.
func CredentialsInteractive(in io.Reader, out io.Writer) (Credentials, error) {
	reader := bufio.NewReader(in)

	fmt.Fprintln(out, "Tableau Server Authentication Setup")
	fmt.Fprintln(out)

	serverURL, err := prompt(reader, out, "Server URL", "https://your-server.com")
	if err != nil {
		return Credentials{}, err
	}
	siteID, err := prompt(reader, out, "Site ID (leave blank for default)", "")
	if err != nil {
		return Credentials{}, err
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Authentication methods:")
	fmt.Fprintln(out, "  1. Personal Access Token (recommended)")
	fmt.Fprintln(out, "  2. Username/Password")
	fmt.Fprintln(out, "  3. JWT Token")

	choice, err := prompt(reader, out, "Choose authentication method [1-3]", "1")
	if err != nil {
		return Credentials{}, err
	}

	creds := Credentials{ServerURL: serverURL, SiteID: siteID}

	switch choice {
	case "1":
		creds.Method = AuthPAT
		if creds.TokenName, err = prompt(reader, out, "Token name", ""); err != nil {
			return Credentials{}, err
		}
		if creds.TokenValue, err = promptSecret(reader, out, "Token value"); err != nil {
			return Credentials{}, err
		}
	case "2":
		creds.Method = AuthCredentials
		if creds.Username, err = prompt(reader, out, "Username", ""); err != nil {
			return Credentials{}, err
		}
		if creds.Password, err = promptSecret(reader, out, "Password"); err != nil {
			return Credentials{}, err
		}
	case "3":
		creds.Method = AuthJWT
		if creds.JWT, err = promptSecret(reader, out, "JWT token"); err != nil {
			return Credentials{}, err
		}
	default:
		return Credentials{}, apierr.New(apierr.KindConfiguration, "invalid authentication method selected: %q", choice)
	}

	if err := creds.Validate(); err != nil {
		return Credentials{}, err
	}
	return creds, nil
}

func prompt(reader *bufio.Reader, out io.Writer, label, fallback string) (string, error) {
	if fallback != "" {
		fmt.Fprintf(out, "%s [%s]: ", label, fallback)
	} else {
		fmt.Fprintf(out, "%s: ", label)
	}
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", apierr.Wrap(apierr.KindConfiguration, err, "failed to read input")
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return fallback, nil
	}
	return line, nil
}

// promptSecret reads without echo when stdin is a terminal, otherwise it
// falls back to a plain line read so scripted input keeps working.
func promptSecret(reader *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprintf(out, "%s: ", label)

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		if err != nil {
			return "", apierr.Wrap(apierr.KindConfiguration, err, "failed to read secret")
		}
		return strings.TrimSpace(string(secret)), nil
	}

	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", apierr.Wrap(apierr.KindConfiguration, err, "failed to read secret")
	}
	return strings.TrimSpace(line), nil
}
