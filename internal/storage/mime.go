package storage

import "papervid/internal/types"

var contentTypes = map[string]string{
	types.ArtifactPDF:       "application/pdf",
	types.ArtifactDoc:       "text/markdown",
	types.ArtifactSlides:    "application/json",
	types.ArtifactRendered:  "application/json",
	types.ArtifactSlidesPDF: "application/pdf",
	types.ArtifactPptx:      "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	types.ArtifactVideo:     "video/mp4",
	types.ArtifactCaptions:  "application/x-subrip",
}

var downloadNames = map[string]string{
	types.ArtifactSlidesPDF: "slides.pdf",
	types.ArtifactVideo:     "video.mp4",
	types.ArtifactCaptions:  "captions.srt",
}

// ContentType maps an artifact kind to the MIME type the file-serving
// interface should respond with.
func ContentType(kind string) string {
	if ct, ok := contentTypes[kind]; ok {
		return ct
	}
	return "application/octet-stream"
}

// DownloadName maps an artifact kind to a download file name.
func DownloadName(kind string) string {
	if name, ok := downloadNames[kind]; ok {
		return name
	}
	return kind
}
