package deletefile

type Input struct {
	Path string `json:"path"`
}

type Output struct {
	Path    string `json:"path"`
	Deleted bool   `json:"deleted"`
}
