package web

// HeaderView is what the header needs to know about the session.
type HeaderView struct {
	Authenticated bool
	// Short is the abbreviated principal shown next to the Logout button.
	Short string
	// Path is the current path, sent back as return_to on login.
	Path string
}

func pageTitle(title string) string {
	if title == "" {
		return "Satty"
	}
	return title + " | Satty"
}
