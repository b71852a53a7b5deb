package http

import (
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"study-service/internal/pdftext"
	"study-service/internal/quiz"
)

// maxUploadBytes bounds one PDF upload request.
const maxUploadBytes = 100 << 20

type createStudyRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Content     string `json:"content"`
}

func (h *Handler) listStudies(c *gin.Context) {
	studies, err := h.studies.List(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"studies": studies})
}

func (h *Handler) createStudy(c *gin.Context) {
	var req createStudyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Title and content are required")
		return
	}
	study, err := h.studies.CreateFromNotes(c.Request.Context(), currentUser(c), req.Title, req.Description, req.Content)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"study": study})
}

func (h *Handler) uploadStudy(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	form, err := c.MultipartForm()
	if err != nil {
		badRequest(c, "Invalid upload")
		return
	}
	files, err := readPDFs(form.File["pdfs"])
	if err != nil {
		badRequest(c, "Could not read uploaded files")
		return
	}
	study, err := h.studies.CreateFromPDFs(c.Request.Context(), currentUser(c),
		c.PostForm("title"), c.PostForm("description"), files)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"study": study})
}

func readPDFs(headers []*multipart.FileHeader) ([]pdftext.File, error) {
	files := make([]pdftext.File, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, err
		}
		files = append(files, pdftext.File{Name: fh.Filename, Data: data})
	}
	return files, nil
}

func (h *Handler) getStudy(c *gin.Context) {
	study, rec, err := h.studies.Get(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"study": study, "questionRecommendation": rec})
}

// GET /studies/:id/search?q=&topicId=&current=
func (h *Handler) search(c *gin.Context) {
	current, _ := strconv.Atoi(c.Query("current"))
	res, err := h.studies.Search(c.Request.Context(), currentUser(c), c.Param("id"), c.Query("topicId"), c.Query("q"), current)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /studies/:id/quiz/recommendation?mode=custom&topics=a,b
func (h *Handler) recommendation(c *gin.Context) {
	mode := quiz.ParseMode(c.Query("mode"))
	var custom []string
	for _, raw := range c.QueryArray("topics") {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				custom = append(custom, id)
			}
		}
	}
	rec, selected, err := h.studies.Recommendation(c.Request.Context(), currentUser(c), c.Param("id"), mode, custom)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mode": mode, "questionRecommendation": rec, "selectedTopics": selected})
}

type learnedRequest struct {
	Learned *bool `json:"learned"`
}

type bulkLearnedRequest struct {
	TopicIDs []string `json:"topicIds"`
	Learned  *bool    `json:"learned"`
}

func (h *Handler) setTopicLearned(c *gin.Context) {
	var req learnedRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Learned == nil {
		badRequest(c, "learned is required")
		return
	}
	topic, err := h.studies.SetTopicLearned(c.Request.Context(), currentUser(c), c.Param("id"), c.Param("topicId"), *req.Learned)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"topic": topic})
}

func (h *Handler) setTopicsLearned(c *gin.Context) {
	var req bulkLearnedRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Learned == nil {
		badRequest(c, "learned is required")
		return
	}
	topics, err := h.studies.SetTopicsLearned(c.Request.Context(), currentUser(c), c.Param("id"), req.TopicIDs, *req.Learned)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"topics": topics})
}

type videoRequest struct {
	VideoURL string `json:"videoUrl"`
}

func (h *Handler) setTopicVideo(c *gin.Context) {
	var req videoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "videoUrl is required")
		return
	}
	topic, err := h.studies.SetTopicVideo(c.Request.Context(), currentUser(c), c.Param("id"), c.Param("topicId"), req.VideoURL)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"topic": topic})
}

func (h *Handler) clearTopicVideo(c *gin.Context) {
	topic, err := h.studies.ClearTopicVideo(c.Request.Context(), currentUser(c), c.Param("id"), c.Param("topicId"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"topic": topic})
}

func (h *Handler) topicScript(c *gin.Context) {
	script, err := h.studies.TopicScript(c.Request.Context(), currentUser(c), c.Param("id"), c.Param("topicId"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"script": script})
}
