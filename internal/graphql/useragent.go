package graphql

import "strings"

const (
	clientName    = "amplify-ai-constructs"
	clientVersion = "1.5.3"
)

// UserAgent produces the x-amz-user-agent tag sent with every store request. An inbound tag from the caller is kept and
// extended rather than replaced.
type UserAgent struct {
	inbound string
}

func NewUserAgent(inbound string) UserAgent {
	return UserAgent{inbound: inbound}
}

// Metadata is a key/value pair appended to the user agent for a single call
type Metadata struct {
	Key   string
	Value string
}

func (ua UserAgent) String(metadata ...Metadata) string {
	var sb strings.Builder
	if ua.inbound != "" {
		sb.WriteString(ua.inbound)
		sb.WriteString(" md/" + clientName + "#" + clientVersion)
	} else {
		sb.WriteString(clientName + "/" + clientVersion)
	}
	for _, md := range metadata {
		sb.WriteString(" " + md.Key + "/" + md.Value)
	}
	return sb.String()
}
