package service

import "errors"

var (
	// ErrMergeConflict means remote and local content diverged beyond the
	// auto-resolution policy. The round's upload phase is aborted and the
	// watermark is not advanced; local data stays intact.
	ErrMergeConflict = errors.New("merge conflicts detected, resolve them before syncing")

	// ErrAttachmentRelease means a local binary superseded by a remote
	// attachment could not be removed. The attachment's merge is aborted
	// rather than leaving two binaries for one logical attachment.
	ErrAttachmentRelease = errors.New("could not release superseded attachment binary")
)
