package recordings

// Candidate is a recording file that gets a link on the course page
type Candidate struct {
	FileType string
	URL      string
	// VideoIndex is the 1-based position of the qualifying video the link
	// belongs to. A chat transcript shares the index of the video before it.
	VideoIndex int
	File       File
}

// Candidates returns the links to publish for an occurrence, in file order.
// An MP4 qualifies when it is at least minVideoSize bytes and contributes its
// play URL. A CHAT file contributes its download URL only when the MP4 before
// it qualified. Every other file type is left off the page.
func Candidates(files []File, minVideoSize int64) []Candidate {
	var candidates []Candidate
	ignoredVideo := true
	videoIndex := 0

	for _, file := range files {
		switch file.FileType {
		case FileTypeMP4:
			if file.FileSize >= minVideoSize {
				videoIndex++
				candidates = append(candidates, Candidate{
					FileType:   FileTypeMP4,
					URL:        file.PlayURL,
					VideoIndex: videoIndex,
					File:       file,
				})
				ignoredVideo = false
			} else {
				ignoredVideo = true
			}
		case FileTypeCHAT:
			if !ignoredVideo {
				candidates = append(candidates, Candidate{
					FileType:   FileTypeCHAT,
					URL:        file.DownloadURL,
					VideoIndex: videoIndex,
					File:       file,
				})
			}
		}
	}

	return candidates
}

// MultipleVideos reports whether more than one video qualified
func MultipleVideos(candidates []Candidate) bool {
	if len(candidates) == 0 {
		return false
	}
	return candidates[len(candidates)-1].VideoIndex > 1
}
