package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/PolarWolf314/pkgseal/internal/certificates"
	kerrors "github.com/PolarWolf314/pkgseal/internal/errors"
	"github.com/PolarWolf314/pkgseal/internal/ui"
	"github.com/PolarWolf314/pkgseal/internal/utils"

	"github.com/briandowns/spinner"
	"github.com/common-nighthawk/go-figure"
	"github.com/spf13/pflag"
)

// addStoreFlags registers --store-location and --store-name on fs.
func addStoreFlags(fs *pflag.FlagSet, location, name *string, defaultLocation, defaultName, usage string) {
	fs.StringVar(location, "store-location", defaultLocation, "store location "+usage+" (CurrentUser or LocalMachine)")
	fs.StringVar(name, "store-name", defaultName, "store name "+usage)
}

// startSpinner creates and starts a spinner on out with the given message
// when not in verbose or debug mode. The returned cleanup function stops it
// and prints FinalMSG, which never needs a trailing newline.
func startSpinner(out io.Writer, message string) (*spinner.Spinner, func()) {
	Logger.Debugf("Starting spinner with message: %s", message)
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(out))
	s.Suffix = " " + message

	// Continue without a colored spinner if the color is rejected.
	_ = s.Color("cyan")

	quiet := !verbose && !debug
	if quiet {
		s.Start()
	} else {
		Logger.Infof("Running in verbose or debug mode: %s", message)
	}

	cleanup := func() {
		finalMsg := ""
		if s.FinalMSG != "" {
			finalMsg = ui.EnsureNewline(s.FinalMSG)
			// Clear FinalMSG so s.Stop() doesn't print it.
			s.FinalMSG = ""
		}

		if quiet {
			s.Stop()
		}

		if finalMsg != "" {
			fmt.Fprint(out, finalMsg)
		}
	}

	return s, cleanup
}

// printBanner prints the pkgseal ASCII banner.
func printBanner(out io.Writer) {
	banner := figure.NewFigure("pkgseal", "small", true)
	fmt.Fprintln(out, ui.Success.Sprint(banner.String()))
}

// pauseAtEnd waits for Enter so a console opened by an installer stays
// visible. It does nothing when stdin is not a terminal.
func pauseAtEnd(out io.Writer) {
	if !utils.IsTerminal(os.Stdin) {
		return
	}
	fmt.Fprint(out, ui.Muted.Sprint("Press Enter to exit"))
	_ = utils.WaitForEnter(os.Stdin)
	fmt.Fprintln(out)
}

// readPassword returns value, or prompts for it on a terminal when prompt
// is set and value is empty.
func readPassword(value string, prompt bool, label string) (string, error) {
	if value != "" || !prompt || !utils.IsTerminal(os.Stdin) {
		return value, nil
	}
	password, err := utils.ReadPassphrase(os.Stdin, os.Stderr, label+": ")
	if err != nil {
		return "", err
	}
	return string(password), nil
}

// formatError turns a workflow error into a user-facing message with a hint.
func formatError(err error) string {
	msg := ui.Failed(err.Error())

	switch {
	case errors.Is(err, kerrors.ErrConfigNotFound):
		return msg + "\n" + ui.Hint("Pass the configuration with "+ui.Flag.Sprint("--config"))
	case errors.Is(err, kerrors.ErrConfigInvalid), errors.Is(err, kerrors.ErrConfigCorrupt):
		return msg + "\n" + ui.Hint("The package was not encrypted correctly; rebuild it")
	case errors.Is(err, kerrors.ErrCertificateMismatch):
		return msg + "\n" + ui.Hint("Supply the certificate the package was encrypted with")
	case errors.Is(err, kerrors.ErrCertificateNotFound), errors.Is(err, kerrors.ErrCertificateFileNotFound):
		return msg + "\n" + ui.Hint("Import it with "+ui.Code.Sprint("pkgseal store import")+
			", pass "+ui.Flag.Sprint("--certificate")+", or add a "+ui.Path.Sprint(certificates.OverrideFileName)+" override")
	case errors.Is(err, kerrors.ErrKeyDecryptFailed):
		return msg + "\n" + ui.Hint("The certificate must include its private key")
	case errors.Is(err, kerrors.ErrStoreUnavailable):
		return msg + "\n" + ui.Hint("Set "+ui.Code.Sprint("PKGSEAL_STORE_DIR")+" to use file-backed stores")
	case errors.Is(err, kerrors.ErrInvalidDateFormat):
		return msg + "\n" + ui.Hint("Dates use the YYYY-MM-DD format")
	}
	return msg
}
