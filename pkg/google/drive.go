package google

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/harrisonrobin/taskmind/pkg/auth"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// DriveBackup mirrors the task list into a single JSON file in the user's Drive.
type DriveBackup struct {
	Provider auth.Provider
	Options  []option.ClientOption
}

// Upload creates filename or overwrites the existing file of that name.
func (d *DriveBackup) Upload(ctx context.Context, blob []byte, filename string) error {
	cred, err := d.Provider.Credential(ctx)
	if err != nil {
		return fmt.Errorf("drive backup: %w", err)
	}

	srv, err := drive.NewService(ctx, clientOptions(ctx, cred, d.Options)...)
	if err != nil {
		return fmt.Errorf("unable to create Drive client: %w", err)
	}

	query := fmt.Sprintf("name = '%s' and trashed = false", strings.ReplaceAll(filename, "'", `\'`))
	list, err := srv.Files.List().Q(query).Spaces("drive").Fields("files(id, name)").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("unable to look up backup file: %w", err)
	}

	media := bytes.NewReader(blob)
	if len(list.Files) > 0 {
		_, err = srv.Files.Update(list.Files[0].Id, &drive.File{}).
			Media(media, googleapi.ContentType("application/json")).
			Context(ctx).
			Do()
		if err != nil {
			return fmt.Errorf("unable to update backup file: %w", err)
		}
		return nil
	}

	_, err = srv.Files.Create(&drive.File{Name: filename, MimeType: "application/json"}).
		Media(media, googleapi.ContentType("application/json")).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("unable to create backup file: %w", err)
	}
	return nil
}
