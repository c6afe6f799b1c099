package cli

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/browser"
	log "github.com/sirupsen/logrus"
)

// AudioFetcher downloads audio artifacts referenced by assistant replies.
type AudioFetcher interface {
	AudioURL(audioPath string) (string, error)
	FetchAudio(ctx context.Context, audioPath string, w io.Writer) (int64, error)
}

// AudioPlayer downloads audio replies into a local directory and hands them to
// the operating system's default handler.
type AudioPlayer struct {
	fetcher AudioFetcher
	dir     string
	open    func(path string) error
	logger  log.FieldLogger
}

// NewAudioPlayer creates a player that stores downloads under dir.
func NewAudioPlayer(fetcher AudioFetcher, dir string, logger log.FieldLogger) *AudioPlayer {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &AudioPlayer{
		fetcher: fetcher,
		dir:     dir,
		open:    browser.OpenFile,
		logger:  logger,
	}
}

// WithOpener replaces the function used to hand a downloaded file to the OS.
func (p *AudioPlayer) WithOpener(open func(path string) error) *AudioPlayer {
	p.open = open
	return p
}

// Download fetches audioPath into the audio directory and returns the local path.
// An already downloaded file is reused.
func (p *AudioPlayer) Download(ctx context.Context, audioPath string) (string, error) {
	target, err := p.fetcher.AudioURL(audioPath)
	if err != nil {
		return "", err
	}
	local := filepath.Join(p.dir, audioFileName(target))
	if _, err := os.Stat(local); err == nil {
		return local, nil
	}

	if err := os.MkdirAll(p.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create audio directory: %w", err)
	}
	tmp, err := os.CreateTemp(p.dir, ".download-*")
	if err != nil {
		return "", fmt.Errorf("failed to create audio file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := p.fetcher.FetchAudio(ctx, audioPath, tmp)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", fmt.Errorf("failed to download audio: %w", err)
	}
	if err := os.Rename(tmp.Name(), local); err != nil {
		return "", fmt.Errorf("failed to store audio: %w", err)
	}

	p.logger.WithFields(log.Fields{"file": local, "bytes": n}).Debug("audio downloaded")
	return local, nil
}

// Play downloads audioPath and opens it.
func (p *AudioPlayer) Play(ctx context.Context, audioPath string) (string, error) {
	local, err := p.Download(ctx, audioPath)
	if err != nil {
		return "", err
	}
	if err := p.open(local); err != nil {
		return local, fmt.Errorf("failed to open audio: %w", err)
	}
	return local, nil
}

// audioFileName picks a local file name from a digest of the artifact URL and
// its last path element.
func audioFileName(rawURL string) string {
	name := ""
	if u, err := url.Parse(rawURL); err == nil {
		name = path.Base(u.Path)
	}
	if name == "" || name == "." || name == "/" || name == ".." {
		name = "reply.audio"
	}
	name = strings.Map(func(r rune) rune {
		if r == '\\' || r == ':' {
			return '_'
		}
		return r
	}, name)
	return urlDigest(rawURL) + "-" + name
}

// urlDigest keys a download by its full URL so artifacts sharing a base name
// in different sessions never collide.
func urlDigest(rawURL string) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], xxhash.Sum64String(rawURL))
	return hex.EncodeToString(buf[:])
}
