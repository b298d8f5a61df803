package server

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/DominicWuest/nodebisect/pkg/bisect"
	"github.com/gin-gonic/gin"
)

type httpServer struct {
	bisector *bisect.Bisector

	// The bisector reads and writes a single state, so requests are handled one at a time
	mu sync.Mutex

	router *gin.Engine
}

func (h *httpServer) Init(port int, bisector *bisect.Bisector) error {
	h.routes(bisector)
	return h.router.Run(fmt.Sprintf("localhost:%d", port))
}

func (h *httpServer) routes(bisector *bisect.Bisector) {
	h.bisector = bisector

	router := gin.Default()

	router.GET("/status", h.getStatus)
	router.POST("/start", h.postStart)
	router.POST("/good", h.postMark(bisect.Good))
	router.POST("/bad", h.postMark(bisect.Bad))
	router.POST("/skip", h.postMark(bisect.Skip))
	router.POST("/mark/:status", h.postMarkParam)
	router.POST("/next", h.postNext)

	h.router = router
}

type versionResponse struct {
	RemoteName      string `json:"remoteName"`
	SemanticVersion string `json:"semanticVersion"`
	Arch            string `json:"arch"`
}

type candidateResponse struct {
	Version versionResponse `json:"version"`

	LastGood versionResponse `json:"lastGood"`
	FirstBad versionResponse `json:"firstBad"`

	Remaining int `json:"remaining"`
	StepsLeft int `json:"stepsLeft"`

	Downloaded bool `json:"downloaded"`
}

type regressionResponse struct {
	FirstBad versionResponse   `json:"firstBad"`
	LastGood versionResponse   `json:"lastGood"`
	Skipped  []versionResponse `json:"skipped,omitempty"`
}

type resultResponse struct {
	Message string `json:"message"`

	Candidate  *candidateResponse  `json:"candidate,omitempty"`
	Regression *regressionResponse `json:"regression,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *httpServer) getStatus(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	status, err := h.bisector.Status()
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *httpServer) postStart(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.bisector.Start(); err != nil {
		abortWithError(c, err)
		return
	}
	c.AbortWithStatus(http.StatusOK)
}

func (h *httpServer) postMark(status bisect.Status) gin.HandlerFunc {
	return func(c *gin.Context) {
		h.mu.Lock()
		defer h.mu.Unlock()

		res, err := h.bisector.Mark(c.Request.Context(), status)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, toResultResponse(res))
	}
}

// postMarkParam marks the active version with the status given in the path
func (h *httpServer) postMarkParam(c *gin.Context) {
	status, err := bisect.ParseStatus(c.Param("status"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	h.postMark(status)(c)
}

func (h *httpServer) postNext(c *gin.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	res, err := h.bisector.Next(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResultResponse(res))
}

// abortWithError responds with 409 for errors the user can resolve and 500 for everything else
func abortWithError(c *gin.Context, err error) {
	code := http.StatusInternalServerError
	if bisect.IsUserError(err) {
		code = http.StatusConflict
	}
	c.AbortWithStatusJSON(code, errorResponse{Error: err.Error()})
}

func toVersionResponse(v bisect.VersionRef) versionResponse {
	return versionResponse{
		RemoteName:      v.RemoteName,
		SemanticVersion: v.SemanticVersion,
		Arch:            v.Arch,
	}
}

func toResultResponse(res *bisect.Result) resultResponse {
	if res == nil {
		return resultResponse{}
	}

	response := resultResponse{Message: res.String()}
	if res.Candidate != nil {
		response.Candidate = &candidateResponse{
			Version: toVersionResponse(res.Candidate.Version),

			LastGood: toVersionResponse(res.Candidate.LastGood),
			FirstBad: toVersionResponse(res.Candidate.FirstBad),

			Remaining: res.Candidate.Remaining,
			StepsLeft: res.Candidate.StepsLeft,

			Downloaded: res.Candidate.Downloaded,
		}
	}
	if res.Regression != nil {
		response.Regression = &regressionResponse{
			FirstBad: toVersionResponse(res.Regression.FirstBad),
			LastGood: toVersionResponse(res.Regression.LastGood),
		}
		for _, v := range res.Regression.Skipped {
			response.Regression.Skipped = append(response.Regression.Skipped, toVersionResponse(v))
		}
	}
	return response
}
