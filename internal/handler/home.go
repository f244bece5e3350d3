package handler

import (
	"net/http"
)

// HandleHome sends visitors to the test. The gate behind /test routes anyone
// without a valid session to the sign-in page.
func HandleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	http.Redirect(w, r, "/test", http.StatusSeeOther)
}
