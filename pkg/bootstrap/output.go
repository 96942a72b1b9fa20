package bootstrap

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// PrintBootstrapResult writes a summary of a created administrator to w.
// A generated password is shown here and nowhere else.
func PrintBootstrapResult(w io.Writer, result *AdminBootstrapResult) {
	if result == nil || !result.UserCreated {
		return
	}
	border := strings.Repeat("=", 80)
	fmt.Fprintf(w, "\n%s\nADMIN BOOTSTRAP COMPLETED\n%s\n", border, border)
	fmt.Fprintf(w, "  Username:  %s\n", result.Username)
	fmt.Fprintf(w, "  Email:     %s\n", result.Email)
	fmt.Fprintf(w, "  ID:        %s\n", result.AccountID)
	if result.PasswordFromEnv {
		fmt.Fprintln(w, "  Password:  (configured via ADMIN_PASSWORD environment variable)")
		fmt.Fprintln(w, "\n  Remove ADMIN_PASSWORD from the environment after first login.")
	} else {
		fmt.Fprintf(w, "  Password:  %s\n", result.Password)
		fmt.Fprintln(w, "\n  This password will not be displayed again.")
	}
	fmt.Fprintln(w, "  Enable two-factor authentication after logging in.")
	fmt.Fprintf(w, "%s\n\n", border)
}

// LogBootstrapSummary logs the result without the password.
func LogBootstrapSummary(result *AdminBootstrapResult) {
	if result == nil || !result.UserCreated {
		return
	}
	slog.Info("Admin bootstrap summary",
		"admin_username", result.Username,
		"admin_email", result.Email,
		"account_id", result.AccountID,
		"password_from_env", result.PasswordFromEnv,
	)
}
