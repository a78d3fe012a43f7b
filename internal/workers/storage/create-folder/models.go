package createfolder

type Input struct {
	Path string `json:"path"`
}

type Output struct {
	Path     string `json:"path"`
	FolderID string `json:"folderId"`
	// Exists reports whether the folder was already there before the call.
	Exists bool `json:"exists"`
}
