package domain

// ReactionType is the closed set of ephemeral signals a member may send.
type ReactionType string

const (
	ReactionClap     ReactionType = "clap"
	ReactionHeart    ReactionType = "heart"
	ReactionLaugh    ReactionType = "laugh"
	ReactionFire     ReactionType = "fire"
	ReactionWave     ReactionType = "wave"
	ReactionThumbsUp ReactionType = "thumbsup"
)

func (t ReactionType) Valid() bool {
	switch t {
	case ReactionClap, ReactionHeart, ReactionLaugh, ReactionFire, ReactionWave, ReactionThumbsUp:
		return true
	}
	return false
}

// Reaction is one entry in a room's bounded reaction ring.
type Reaction struct {
	Type      ReactionType `json:"type"`
	Fid       Fid          `json:"fid"`
	Timestamp int64        `json:"timestamp"`
}
