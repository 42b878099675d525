// Package fileassembler resolves cross-file dependencies between text
// files and the media they reference, emitting a complete bundle once a
// text file and every media blob it points to have all arrived.
package fileassembler

import (
	"log/slog"
	"sync"

	"github.com/relaynet/mediaclient/core/node"
)

// DefaultRefAttr is the HTML attribute holding a referenced media id on
// an <img> element, per spec's resolution of the two-draft ambiguity
// (the original's other draft used "media_id" instead — still
// available via Config.RefAttr).
const DefaultRefAttr = "src"

// FileKey identifies a stored file: (source, file_id) for a text file,
// or (nil, media_id) for a media blob, since media files aren't
// associated with the source that served them.
type FileKey struct {
	Source *node.ID
	FileID string
}

func textKey(source node.ID, fileID string) FileKey {
	s := source
	return FileKey{Source: &s, FileID: fileID}
}

func mediaKey(mediaID string) FileKey {
	return FileKey{FileID: mediaID}
}

// PendingTextFile is a text file awaiting one or more media blobs.
type PendingTextFile struct {
	Source   node.ID
	FileID   string
	Content  string
	MediaIDs []string
}

// Bundle is a fully resolved text file with all of its referenced media.
type Bundle struct {
	Source  node.ID
	FileID  string
	Content string
	Media   map[string][]byte
}

type storedFile struct {
	text  *PendingTextFile
	media []byte
}

// Config configures a FileAssembler.
type Config struct {
	// RefAttr is the HTML attribute read off <img> elements to discover
	// a media reference. Default: DefaultRefAttr ("src").
	RefAttr string

	// Logger for assembly events. Falls back to slog.Default() if nil.
	Logger *slog.Logger
}

// FileAssembler stores pending text files and media blobs, keyed by
// FileKey, and emits a Bundle once a text file's dependencies resolve.
type FileAssembler struct {
	cfg Config
	log *slog.Logger

	mu    sync.Mutex
	order []FileKey
	files map[FileKey]*storedFile
}

// New creates an empty FileAssembler.
func New(cfg Config) *FileAssembler {
	if cfg.RefAttr == "" {
		cfg.RefAttr = DefaultRefAttr
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &FileAssembler{
		cfg:   cfg,
		log:   logger.WithGroup("fileassembler"),
		files: make(map[FileKey]*storedFile),
	}
}

// AddTextFile extracts media references from content. If content
// references no media, or every reference is already satisfied by a
// media blob AddMediaFile stored earlier (media can legitimately race
// ahead of the text file that names it), the bundle is already
// complete and AddTextFile returns it directly instead of ever storing
// a PendingTextFile — the caller does not need to wait on a later
// AddMediaFile call to learn that. Otherwise it stores a
// PendingTextFile and returns every media id extracted from content, in
// the order they appear (duplicates included, and ids whose media is
// already stored included; AddMediaFile handles repeats).
func (a *FileAssembler) AddTextFile(source node.ID, fileID, content string) ([]string, *Bundle) {
	refs := ExtractRefs(content, a.cfg.RefAttr)
	if len(refs) == 0 {
		return nil, &Bundle{Source: source, FileID: fileID, Content: content, Media: map[string][]byte{}}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	pending := &PendingTextFile{Source: source, FileID: fileID, Content: content, MediaIDs: refs}
	if a.allMediaPresentLocked(refs) {
		bundle, _ := a.takeCompleteLocked(textKey(source, fileID), pending)
		return refs, bundle
	}

	key := textKey(source, fileID)
	a.files[key] = &storedFile{text: pending}
	a.order = append(a.order, key)
	a.log.Debug("pending text file stored", "source", source, "file_id", fileID, "refs", len(refs))
	return refs, nil
}

// AddMediaFile stores a media blob under mediaID, overwriting any
// previous blob with the same id (first-wins only applies across
// distinct text files claiming it — a later AddMediaFile call for the
// same id simply replaces the pending bytes). It then drains every
// pending text file whose references are now all present, returning
// all of them — not just the first — so a text file satisfied by an
// earlier, unrelated AddMediaFile call is never left stranded waiting
// for a scan that only the next arrival would have triggered. A
// completed bundle consumes the media blobs it claims, so a blob named
// by two pending text files goes only to the first one in insertion
// order; the other stays pending.
func (a *FileAssembler) AddMediaFile(mediaID string, content []byte) []Bundle {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := mediaKey(mediaID)
	if _, exists := a.files[key]; !exists {
		a.order = append(a.order, key)
	}
	a.files[key] = &storedFile{media: content}

	var bundles []Bundle
	for {
		b, ok := a.checkAndTakeComplete()
		if !ok {
			break
		}
		bundles = append(bundles, *b)
	}
	return bundles
}

// checkAndTakeComplete scans pending text files in insertion order and
// returns the first one whose every media reference is now present,
// consuming it (and its claimed media blobs) from storage.
func (a *FileAssembler) checkAndTakeComplete() (*Bundle, bool) {
	for _, key := range a.order {
		stored, ok := a.files[key]
		if !ok || stored.text == nil {
			continue
		}
		if a.allMediaPresentLocked(stored.text.MediaIDs) {
			return a.takeCompleteLocked(key, stored.text)
		}
	}
	return nil, false
}

func (a *FileAssembler) allMediaPresentLocked(mediaIDs []string) bool {
	for _, id := range mediaIDs {
		if _, ok := a.files[mediaKey(id)]; !ok {
			return false
		}
	}
	return true
}

func (a *FileAssembler) takeCompleteLocked(textKey FileKey, text *PendingTextFile) (*Bundle, bool) {
	media := make(map[string][]byte, len(text.MediaIDs))
	for _, id := range text.MediaIDs {
		mk := mediaKey(id)
		if stored, ok := a.files[mk]; ok {
			media[id] = stored.media
			delete(a.files, mk)
			a.removeFromOrderLocked(mk)
		}
	}
	delete(a.files, textKey)
	a.removeFromOrderLocked(textKey)

	a.log.Debug("bundle completed", "source", text.Source, "file_id", text.FileID)
	return &Bundle{
		Source:  text.Source,
		FileID:  text.FileID,
		Content: text.Content,
		Media:   media,
	}, true
}

func (a *FileAssembler) removeFromOrderLocked(key FileKey) {
	for i, k := range a.order {
		if k == key {
			a.order = append(a.order[:i], a.order[i+1:]...)
			return
		}
	}
}

// PendingCount returns the number of stored entries (text files plus
// unclaimed media blobs), mainly for tests.
func (a *FileAssembler) PendingCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.files)
}
