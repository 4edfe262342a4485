// Package maven resolves classpath entries written as Maven coordinates to
// jar files, using the local repository and downloading what is missing.
package maven

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("bundlegen.maven")

const (
	DefaultRemoteURL = "https://repo1.maven.org/maven2"
	EnvRemoteURL     = "MAVEN_REPO_URL"
)

// Coordinate names one jar artifact.
type Coordinate struct {
	GroupID    string
	ArtifactID string
	Version    string
	Classifier string
}

// ParseCoordinate accepts groupId:artifactId:version and
// groupId:artifactId:classifier:version.
func ParseCoordinate(s string) (Coordinate, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	for _, p := range parts {
		if p == "" {
			parts = nil
			break
		}
	}
	switch len(parts) {
	case 3:
		return Coordinate{GroupID: parts[0], ArtifactID: parts[1], Version: parts[2]}, nil
	case 4:
		return Coordinate{GroupID: parts[0], ArtifactID: parts[1], Classifier: parts[2], Version: parts[3]}, nil
	}
	return Coordinate{}, fmt.Errorf("invalid Maven coordinate: %s (expected groupId:artifactId:version or groupId:artifactId:classifier:version)", s)
}

// IsCoordinate tells a coordinate from a file path.
func IsCoordinate(s string) bool {
	if strings.ContainsAny(s, `/\`) {
		return false
	}
	_, err := ParseCoordinate(s)
	return err == nil
}

func (c Coordinate) String() string {
	if c.Classifier != "" {
		return c.GroupID + ":" + c.ArtifactID + ":" + c.Classifier + ":" + c.Version
	}
	return c.GroupID + ":" + c.ArtifactID + ":" + c.Version
}

// Path is the slash separated location of the jar inside a repository.
func (c Coordinate) Path() string {
	name := c.ArtifactID + "-" + c.Version
	if c.Classifier != "" {
		name += "-" + c.Classifier
	}
	return path.Join(strings.ReplaceAll(c.GroupID, ".", "/"), c.ArtifactID, c.Version, name+".jar")
}

// Repository is a local Maven repository backed by a remote one.
type Repository struct {
	Remote     string
	Local      string
	httpClient *http.Client
}

// NewRepository uses remote, or $MAVEN_REPO_URL, or Maven Central, and
// local, or ~/.m2/repository.
func NewRepository(remote, local string) (*Repository, error) {
	if remote == "" {
		remote = os.Getenv(EnvRemoteURL)
	}
	if remote == "" {
		remote = DefaultRemoteURL
	}
	if local == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		local = filepath.Join(home, ".m2", "repository")
	}
	return &Repository{
		Remote:     strings.TrimSuffix(remote, "/"),
		Local:      local,
		httpClient: &http.Client{},
	}, nil
}

func (r *Repository) URL(c Coordinate) string {
	return r.Remote + "/" + c.Path()
}

// Jar returns the local path of the artifact, downloading it first when
// the local repository lacks it.
func (r *Repository) Jar(ctx context.Context, c Coordinate) (string, error) {
	dest := filepath.Join(r.Local, filepath.FromSlash(c.Path()))
	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}
	if err := r.download(ctx, r.URL(c), dest); err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", c, err)
	}
	return dest, nil
}

func (r *Repository) download(ctx context.Context, url, dest string) error {
	log.Infof("downloading %s", url)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d for %s", resp.StatusCode, url)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dest)
}
