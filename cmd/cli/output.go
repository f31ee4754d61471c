package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/kosarica/analytics-service/internal/auth"
	"github.com/kosarica/analytics-service/internal/backend"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

// maxListed caps issue and error listings in table output
const maxListed = 10

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// emit writes v as JSON or hands w to table for tabular output
func emit(w io.Writer, v any, table func(w io.Writer)) error {
	if outputFormat == outputJSON {
		return writeJSON(w, v)
	}
	table(w)
	return nil
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func formatUnix(sec int64) string {
	if sec <= 0 {
		return "-"
	}
	return formatTime(time.Unix(sec, 0))
}

func formatFloat(f *float64) string {
	if f == nil {
		return "-"
	}
	return fmt.Sprintf("%.4g", *f)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func rule(w io.Writer) {
	fmt.Fprintln(w, strings.Repeat("-", 60))
}

// userError rewrites authentication and network failures into the fixed
// user-facing messages; everything else is reported as is.
func userError(err error) string {
	var (
		authErr *auth.AuthError
		netErr  *backend.NetworkError
	)
	switch {
	case errors.Is(err, auth.ErrNotAuthenticated):
		return backend.MsgNotAuthenticated + ". Run 'analytics login' first."
	case errors.As(err, &authErr), errors.As(err, &netErr):
		return backend.UserMessage(err)
	default:
		return err.Error()
	}
}
