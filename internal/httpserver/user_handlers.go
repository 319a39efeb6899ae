package httpserver

import (
	"net/http"
	"strings"

	"chatcore/internal/service"
)

type userResponse struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	LastSeen    string `json:"last_seen"`
}

// handleListUsers backs GET /api/users: a directory listing decorated via the Profile Directory
// Client. An optional ?ids=a,b,c query param scopes the lookup.
func handleListUsers(users *service.UserDirectoryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ids []string
		if raw := r.URL.Query().Get("ids"); raw != "" {
			ids = strings.Split(raw, ",")
		}
		summaries, err := users.List(r.Context(), ids)
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]userResponse, 0, len(summaries))
		for _, s := range summaries {
			out = append(out, userResponse{
				UserID:      s.ID,
				DisplayName: s.DisplayName,
				AvatarURL:   s.AvatarURL,
				LastSeen:    s.LastSeen.Format(timeLayout),
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}
