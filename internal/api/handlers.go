package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// scanRequest is the shared body of the scan endpoints. Headers arrive as a
// raw string from the dashboard's textarea, empty or a JSON object.
type scanRequest struct {
	Target  string `json:"target"`
	Headers string `json:"headers"`
}

type queryRequest struct {
	Target        string          `json:"target"`
	Headers       string          `json:"headers"`
	Query         string          `json:"query"`
	Variables     json.RawMessage `json:"variables"`
	OperationName string          `json:"operationName"`
}

func bindScanRequest(c *gin.Context) (scanRequest, bool) {
	var req scanRequest
	// An absent body is treated like an empty one so the target check below
	// produces the canonical error.
	if err := c.ShouldBindJSON(&req); err != nil && err != io.EOF {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return req, false
	}

	req.Target = strings.TrimSpace(req.Target)
	req.Headers = strings.TrimSpace(req.Headers)

	if req.Target == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "target is required"})
		return req, false
	}
	return req, true
}

func isHeadersError(err error) bool {
	return strings.Contains(err.Error(), "headers must be a JSON object")
}

func (s *Server) handleGraphqlCop(c *gin.Context) {
	req, ok := bindScanRequest(c)
	if !ok {
		return
	}

	findings, err := s.analyzer.Audit(c.Request.Context(), req.Target, req.Headers)
	if err != nil {
		if isHeadersError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid headers JSON: %v", err)})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("GraphQL Cop audit failed: %v", err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"findings": findings})
}

func (s *Server) handleGraphw00f(c *gin.Context) {
	req, ok := bindScanRequest(c)
	if !ok {
		return
	}

	report, banner, err := s.analyzer.Fingerprint(c.Request.Context(), req.Target, req.Headers)
	if err != nil {
		if isHeadersError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid headers JSON: %v", err)})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Fingerprinting failed: %v", err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"output": banner,
		"engine": report,
	})
}

func (s *Server) handleIntrospection(c *gin.Context) {
	req, ok := bindScanRequest(c)
	if !ok {
		return
	}

	document, err := s.analyzer.Introspect(c.Request.Context(), req.Target, req.Headers)
	if err != nil {
		if isHeadersError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid headers JSON: %v", err)})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to introspect endpoint: %v", err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"introspection": document})
}

func (s *Server) handleAnalyze(c *gin.Context) {
	req, ok := bindScanRequest(c)
	if !ok {
		return
	}

	report, err := s.analyzer.Analyze(c.Request.Context(), req.Target, req.Headers)
	if err != nil {
		if isHeadersError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid headers JSON: %v", err)})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if s.store != nil {
		if err := s.store.SaveReport(c.Request.Context(), report); err != nil {
			s.logger.Errorw("Failed to persist report",
				"report_id", report.ID,
				"target", report.Target,
				"error", err,
			)
			report.ID = ""
		}
	} else {
		report.ID = ""
	}

	c.JSON(http.StatusOK, gin.H{
		"engine":        report.Engine,
		"audit":         report.Audit,
		"schema":        report.Schema,
		"introspection": report.Introspection,
		"report_id":     report.ID,
	})
}

func (s *Server) handleQuery(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	req.Target = strings.TrimSpace(req.Target)
	req.Headers = strings.TrimSpace(req.Headers)
	req.Query = strings.TrimSpace(req.Query)
	req.OperationName = strings.TrimSpace(req.OperationName)

	if req.Target == "" || req.Query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "target and query are required"})
		return
	}

	variables, err := decodeVariables(req.Variables)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid variables JSON: %v", err)})
		return
	}

	result, err := s.analyzer.Query(c.Request.Context(), req.Target, req.Headers, req.Query, variables, req.OperationName)
	if err != nil {
		if isHeadersError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid headers JSON: %v", err)})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("GraphQL query failed: %v", err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": result})
}

// decodeVariables accepts either a JSON object directly or a JSON string
// containing one, matching what dashboards tend to submit.
func decodeVariables(raw json.RawMessage) (interface{}, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		asString = strings.TrimSpace(asString)
		if asString == "" {
			return nil, nil
		}
		var obj map[string]interface{}
		if err := json.Unmarshal([]byte(asString), &obj); err != nil {
			return nil, err
		}
		return obj, nil
	}

	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func (s *Server) handleListReports(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "report storage is not configured"})
		return
	}

	summaries, err := s.store.ListReports(c.Request.Context(), 100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": summaries})
}

func (s *Server) handleGetReport(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "report storage is not configured"})
		return
	}

	report, err := s.store.GetReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}
