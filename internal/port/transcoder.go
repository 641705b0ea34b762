package port

import "context"

// Transcoder is the external encoder collaborator. Its only failure signal
// is an error carrying the process exit status and captured stderr.
type Transcoder interface {
	// TranscodeHLS encodes inputPath into an HLS rendition at the given
	// pixel height, writing index.m3u8 and its segments into outputDir.
	// Re-running for the same pair overwrites prior output.
	TranscodeHLS(ctx context.Context, inputPath, outputDir string, height int) error
	// Thumbnail extracts a poster frame from inputPath.
	Thumbnail(ctx context.Context, inputPath, outputPath string) error
}
