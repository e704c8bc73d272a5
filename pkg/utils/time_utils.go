// utils/timeutil.go
package utils

import "time"

// Brasília time location (BRT, -03:00)
var brLoc = func() *time.Location {
	if loc, err := time.LoadLocation("America/Sao_Paulo"); err == nil {
		return loc
	}
	return time.FixedZone("BRT", -3*3600)
}()

func NowUnixSeconds() int64 { return time.Now().Unix() }

// FormatDisplayBR renders a timestamp the way operator notifications show
// it, e.g. "02/01/2006 às 15:04".
func FormatDisplayBR(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(brLoc).Format("02/01/2006 às 15:04")
}

func FormatRFC3339BR(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(brLoc).Format(time.RFC3339)
}
