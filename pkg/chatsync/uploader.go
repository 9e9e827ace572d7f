package chatsync

import (
	"context"
	"encoding/base64"
	"fmt"
)

// UploadRequest is the JSON body for POST /api/upload.
type UploadRequest struct {
	Base64   string `json:"base64"`
	FileName string `json:"fileName"`
	FileType string `json:"fileType"`
	FileSize int64  `json:"fileSize"`
}

func uploadRequest(f File) UploadRequest {
	return UploadRequest{
		Base64:   base64.StdEncoding.EncodeToString(f.Data),
		FileName: f.Name,
		FileType: f.Type,
		FileSize: int64(len(f.Data)),
	}
}

// uploadAll pushes the selected files one at a time and reports each resolved
// attachment through progress so the optimistic message can swap its
// placeholder slot while later files are still in flight. File i+1 does not
// start before i returned. A failed upload fails the whole send so a message
// never goes out with some of its files missing.
func uploadAll(ctx context.Context, api API, files []File, progress func(i int, att Attachment)) ([]Attachment, error) {
	resolved := make([]Attachment, 0, len(files))
	for i, f := range files {
		att, err := api.Upload(ctx, f)
		if err != nil {
			return nil, fmt.Errorf("upload %q: %w", f.Name, err)
		}
		resolved = append(resolved, att)
		if progress != nil {
			progress(i, att)
		}
	}
	return resolved, nil
}
