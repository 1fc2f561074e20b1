package testsandbox

import (
	"fmt"
	"net/url"
)

// withSearchPath returns a DSN whose every pooled connection carries the
// sandbox's search_path, so callers never have to SET search_path by hand.
func withSearchPath(base, schema string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set("options", fmt.Sprintf("-csearch_path=%s,public", schema))
	u.RawQuery = q.Encode()
	return u.String()
}
