package telegram

import (
	"testing"
	"time"

	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fuaSmart/medical-project/internal/ingest"
)

func TestLargestPhotoSize(t *testing.T) {
	sizes := []tg.PhotoSizeClass{
		&tg.PhotoStrippedSize{Type: "i", Bytes: []byte{1, 2}},
		&tg.PhotoSize{Type: "m", W: 320, H: 320, Size: 20_000},
		&tg.PhotoSizeProgressive{Type: "y", W: 1280, H: 1280, Sizes: []int{10_000, 90_000, 150_000}},
		&tg.PhotoSize{Type: "x", W: 800, H: 800, Size: 80_000},
	}

	typ, size := largestPhotoSize(sizes)
	assert.Equal(t, "y", typ)
	assert.Equal(t, 150_000, size)

	typ, size = largestPhotoSize([]tg.PhotoSizeClass{&tg.PhotoCachedSize{Type: "s"}})
	assert.Empty(t, typ)
	assert.Zero(t, size)
}

func TestMediaFromMessage(t *testing.T) {
	t.Run("photo", func(t *testing.T) {
		m := &tg.MessageMediaPhoto{}
		m.SetPhoto(&tg.Photo{
			ID:            7,
			AccessHash:    8,
			FileReference: []byte("ref"),
			Sizes:         []tg.PhotoSizeClass{&tg.PhotoSize{Type: "x", Size: 4096}},
		})
		media := mediaFromMessage(m)
		require.NotNil(t, media)
		assert.Equal(t, ingest.MediaKindPhoto, media.Kind)
		assert.Equal(t, int64(4096), media.Size)
		assert.True(t, media.Downloadable)

		loc, ok := media.Location.(*tg.InputPhotoFileLocation)
		require.True(t, ok)
		assert.Equal(t, int64(7), loc.ID)
		assert.Equal(t, "x", loc.ThumbSize)
	})

	t.Run("document", func(t *testing.T) {
		m := &tg.MessageMediaDocument{}
		m.SetDocument(&tg.Document{
			ID:       9,
			MimeType: "application/pdf",
			Size:     25 * 1024 * 1024,
			Attributes: []tg.DocumentAttributeClass{
				&tg.DocumentAttributeFilename{FileName: "leaflet.pdf"},
			},
		})
		media := mediaFromMessage(m)
		require.NotNil(t, media)
		assert.Equal(t, ingest.MediaKindDocument, media.Kind)
		assert.Equal(t, int64(25*1024*1024), media.Size)
		assert.Equal(t, "leaflet.pdf", media.FileName)
		assert.IsType(t, &tg.InputDocumentFileLocation{}, media.Location)
	})

	t.Run("other media is recorded but not downloadable", func(t *testing.T) {
		media := mediaFromMessage(&tg.MessageMediaGeo{})
		require.NotNil(t, media)
		assert.Equal(t, ingest.MediaKindOther, media.Kind)
		assert.False(t, media.Downloadable)
	})

	t.Run("photo without flags carries no file", func(t *testing.T) {
		media := mediaFromMessage(&tg.MessageMediaPhoto{})
		require.NotNil(t, media)
		assert.Equal(t, ingest.MediaKindPhoto, media.Kind)
		assert.False(t, media.Downloadable)
	})

	t.Run("empty", func(t *testing.T) {
		assert.Nil(t, mediaFromMessage(&tg.MessageMediaEmpty{}))
	})
}

func TestEventFromMessage(t *testing.T) {
	ch := channelInfo{ID: 1001, AccessHash: 5, Username: "tikvahpharma"}
	date := time.Date(2025, 7, 1, 9, 30, 0, 0, time.UTC)

	msg := &tg.Message{
		ID:      42,
		Message: "Paracetamol 500mg in stock",
		Date:    int(date.Unix()),
		PeerID:  &tg.PeerChannel{ChannelID: ch.ID},
	}
	msg.SetFromID(&tg.PeerUser{UserID: 77})
	msg.SetViews(1500)
	msg.SetForwards(12)
	msg.SetReplies(tg.MessageReplies{Replies: 3})
	msg.SetReactions(tg.MessageReactions{Results: []tg.ReactionCount{
		{Reaction: &tg.ReactionEmoji{Emoticon: "👍"}, Count: 9},
	}})

	users := map[int64]*tg.User{77: {ID: 77, Username: "pharmacist"}}
	ev := eventFromMessage(msg, ch, users)

	assert.Equal(t, int64(42), ev.MessageID)
	assert.Equal(t, ch.ID, ev.ChannelID)
	assert.Equal(t, "tikvahpharma", ev.ChannelUsername)
	assert.Equal(t, "Paracetamol 500mg in stock", ev.Text)
	assert.True(t, date.Equal(ev.Date))
	assert.Equal(t, 1500, ev.Views)
	assert.Equal(t, 12, ev.Forwards)
	require.NotNil(t, ev.SenderID)
	assert.Equal(t, int64(77), *ev.SenderID)
	require.NotNil(t, ev.SenderUsername)
	assert.Equal(t, "pharmacist", *ev.SenderUsername)
	require.NotNil(t, ev.Replies)
	assert.Equal(t, 3, ev.Replies.Count)
	assert.Equal(t, []ingest.Reaction{{Emoticon: "👍", Count: 9}}, ev.Reactions)
	assert.Nil(t, ev.Media)
}

func TestMediaFileName(t *testing.T) {
	assert.Equal(t, "photo_42.jpg", mediaFileName(&ingest.Media{Kind: ingest.MediaKindPhoto}, 42))
	assert.Equal(t, "42_leaflet.pdf", mediaFileName(&ingest.Media{Kind: ingest.MediaKindDocument, FileName: "../../leaflet.pdf"}, 42))
	assert.Equal(t, "document_42.bin", mediaFileName(&ingest.Media{Kind: ingest.MediaKindDocument}, 42))
}
