package bot

import (
	"strconv"
	"strings"

	apperrors "github.com/spec-kit/support-bot/pkg/util"
)

// Action operation names. Tokens are either a bare operation ("start")
// or an operation with a trailing integer id ("assign:42").
const (
	OpStart              = "start"
	OpRegister           = "register"
	OpNewRequest         = "new_request"
	OpMyRequests         = "my_requests"
	OpDownloads          = "downloads"
	OpDownloadsProfiles  = "downloads_profiles"
	OpDownloadsMunicipal = "downloads_municipal"
	OpDownloadsRegional  = "downloads_regional"
	OpCategoryIT         = "cat_it"
	OpCategoryAHO        = "cat_aho"
	OpUrgencyNow         = "urgency_now"
	OpUrgencyLater       = "urgency_later"
	OpOrg                = "org"
	OpAssign             = "assign"
	OpClarify            = "clarify"
	OpClose              = "close"
	OpDone               = "done"
)

// Action is one decoded action token.
type Action struct {
	Op    string
	ID    int64
	HasID bool
}

// ParseAction decodes an opaque action token. The trailing integer, when
// present, is separated by the last colon; anything else is malformed.
func ParseAction(token string) (Action, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Action{}, apperrors.NewBadAction(token)
	}
	idx := strings.LastIndexByte(token, ':')
	if idx < 0 {
		return Action{Op: token}, nil
	}
	op, suffix := token[:idx], token[idx+1:]
	if op == "" || suffix == "" {
		return Action{}, apperrors.NewBadAction(token)
	}
	id, err := strconv.ParseInt(suffix, 10, 64)
	if err != nil {
		return Action{}, apperrors.NewBadAction(token)
	}
	return Action{Op: op, ID: id, HasID: true}, nil
}
