package telegram

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/gotd/td/tg"

	"github.com/fuaSmart/medical-project/internal/ingest"
)

// channelInfo is the resolved identity of a scraped channel.
type channelInfo struct {
	ID         int64
	AccessHash int64
	Username   string
}

func (ch channelInfo) inputPeer() *tg.InputPeerChannel {
	return &tg.InputPeerChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash}
}

func channelUsername(ch *tg.Channel) string {
	if ch.Username != "" {
		return ch.Username
	}
	for _, u := range ch.Usernames {
		if u.Active {
			return u.Username
		}
	}
	return ""
}

// eventFromMessage converts an MTProto channel post to a source event. users is
// used to fill in the sender's username and may be nil.
func eventFromMessage(msg *tg.Message, ch channelInfo, users map[int64]*tg.User) ingest.Event {
	ev := ingest.Event{
		MessageID:       int64(msg.ID),
		ChannelID:       ch.ID,
		ChannelUsername: ch.Username,
		Text:            msg.Message,
		Date:            time.Unix(int64(msg.Date), 0).UTC(),
	}

	if from, ok := msg.GetFromID(); ok {
		switch p := from.(type) {
		case *tg.PeerUser:
			id := p.UserID
			ev.SenderID = &id
			if u, ok := users[p.UserID]; ok && u.Username != "" {
				name := u.Username
				ev.SenderUsername = &name
			}
		case *tg.PeerChannel:
			id := p.ChannelID
			ev.SenderID = &id
		}
	}

	if views, ok := msg.GetViews(); ok {
		ev.Views = views
	}
	if forwards, ok := msg.GetForwards(); ok {
		ev.Forwards = forwards
	}
	if replies, ok := msg.GetReplies(); ok {
		info := &ingest.ReplyInfo{Count: replies.Replies}
		if maxID, ok := replies.GetMaxID(); ok {
			info.MaxID = maxID
		}
		if channelID, ok := replies.GetChannelID(); ok {
			info.CommentChannel = channelID
		}
		ev.Replies = info
	}
	if reactions, ok := msg.GetReactions(); ok {
		ev.Reactions = convertReactions(reactions.Results)
	}
	if media, ok := msg.GetMedia(); ok {
		ev.Media = mediaFromMessage(media)
	}
	return ev
}

func convertReactions(results []tg.ReactionCount) []ingest.Reaction {
	out := make([]ingest.Reaction, 0, len(results))
	for _, r := range results {
		var emoticon string
		switch reaction := r.Reaction.(type) {
		case *tg.ReactionEmoji:
			emoticon = reaction.Emoticon
		case *tg.ReactionCustomEmoji:
			emoticon = fmt.Sprintf("custom:%d", reaction.DocumentID)
		case *tg.ReactionPaid:
			emoticon = "paid"
		default:
			continue
		}
		out = append(out, ingest.Reaction{Emoticon: emoticon, Count: r.Count})
	}
	return out
}

// mediaFromMessage reports the attachment kind and declared size. Only photos and
// documents carry a downloadable location; anything else is recorded but never
// fetched.
func mediaFromMessage(media tg.MessageMediaClass) *ingest.Media {
	switch m := media.(type) {
	case *tg.MessageMediaPhoto:
		p, ok := m.GetPhoto()
		if !ok {
			return &ingest.Media{Kind: ingest.MediaKindPhoto}
		}
		photo, ok := p.(*tg.Photo)
		if !ok {
			return &ingest.Media{Kind: ingest.MediaKindPhoto}
		}
		thumb, size := largestPhotoSize(photo.Sizes)
		if thumb == "" {
			return &ingest.Media{Kind: ingest.MediaKindPhoto}
		}
		return &ingest.Media{
			Kind:         ingest.MediaKindPhoto,
			Size:         int64(size),
			MimeType:     "image/jpeg",
			Downloadable: true,
			Location: &tg.InputPhotoFileLocation{
				ID:            photo.ID,
				AccessHash:    photo.AccessHash,
				FileReference: photo.FileReference,
				ThumbSize:     thumb,
			},
		}
	case *tg.MessageMediaDocument:
		d, ok := m.GetDocument()
		if !ok {
			return &ingest.Media{Kind: ingest.MediaKindDocument}
		}
		doc, ok := d.(*tg.Document)
		if !ok {
			return &ingest.Media{Kind: ingest.MediaKindDocument}
		}
		return &ingest.Media{
			Kind:         ingest.MediaKindDocument,
			Size:         doc.Size,
			FileName:     documentFileName(doc.Attributes),
			MimeType:     doc.MimeType,
			Downloadable: true,
			Location: &tg.InputDocumentFileLocation{
				ID:            doc.ID,
				AccessHash:    doc.AccessHash,
				FileReference: doc.FileReference,
			},
		}
	case *tg.MessageMediaEmpty:
		return nil
	default:
		return &ingest.Media{Kind: ingest.MediaKindOther}
	}
}

// largestPhotoSize returns the type and byte size of the biggest rendition.
// Cached and stripped thumbnails are ignored.
func largestPhotoSize(sizes []tg.PhotoSizeClass) (string, int) {
	var (
		bestType string
		bestSize int
	)
	for _, s := range sizes {
		var (
			typ  string
			size int
		)
		switch v := s.(type) {
		case *tg.PhotoSize:
			typ, size = v.Type, v.Size
		case *tg.PhotoSizeProgressive:
			typ = v.Type
			for _, n := range v.Sizes {
				if n > size {
					size = n
				}
			}
		default:
			continue
		}
		if bestType == "" || size > bestSize {
			bestType, bestSize = typ, size
		}
	}
	return bestType, bestSize
}

func documentFileName(attrs []tg.DocumentAttributeClass) string {
	for _, a := range attrs {
		if f, ok := a.(*tg.DocumentAttributeFilename); ok {
			return f.FileName
		}
	}
	return ""
}

// mediaFileName picks the on-disk name of a downloaded attachment. Names are
// prefixed with the message id so two posts never overwrite each other.
func mediaFileName(media *ingest.Media, messageID int64) string {
	if media.FileName != "" {
		name := filepath.Base(filepath.Clean("/" + media.FileName))
		if name != "/" && name != "." {
			return fmt.Sprintf("%d_%s", messageID, name)
		}
	}

	ext := ".bin"
	switch {
	case media.Kind == ingest.MediaKindPhoto:
		ext = ".jpg"
	case media.MimeType != "":
		if exts, err := mime.ExtensionsByType(media.MimeType); err == nil && len(exts) > 0 {
			ext = exts[0]
		}
	}
	return fmt.Sprintf("%s_%d%s", strings.ToLower(media.Kind), messageID, ext)
}
