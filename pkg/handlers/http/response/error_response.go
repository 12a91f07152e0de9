package response

const (
	ConvertErrorPrefix = "Failed to convert document. Error: "
	StatsErrorPrefix   = "Failed to fetch analytics stats: "
)

type ErrorResponse struct {
	Error string `json:"error"`
}
