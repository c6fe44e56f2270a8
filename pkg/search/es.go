package search

import (
	"bytes"
	"context"
	"edu-go/pkg/models"
	"encoding/json"
	"fmt"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"io"
	"net/http"
	"strconv"
)

const CoursesIndex = "courses"

type CourseDoc struct {
	ID          uint   `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	TeacherID   uint   `json:"teacher_id"`
	Price       int64  `json:"price"`
}

func DocFromCourse(c models.Course) CourseDoc {
	return CourseDoc{
		ID:          c.ID,
		Title:       c.Title,
		Description: c.Description,
		Category:    c.Category,
		TeacherID:   c.TeacherID,
		Price:       c.Price,
	}
}

// Index is a nil-safe wrapper: with no client configured every call is a no-op.
type Index struct {
	ES *elasticsearch.Client
}

func NewIndex(client *elasticsearch.Client) *Index {
	return &Index{ES: client}
}

func (i *Index) Enabled() bool {
	return i != nil && i.ES != nil
}

func (i *Index) IndexCourse(ctx context.Context, course models.Course) error {
	if !i.Enabled() {
		return nil
	}
	data, err := json.Marshal(DocFromCourse(course))
	if err != nil {
		return err
	}
	res, err := i.ES.Index(
		CoursesIndex,
		bytes.NewReader(data),
		i.ES.Index.WithContext(ctx),
		i.ES.Index.WithDocumentID(strconv.FormatUint(uint64(course.ID), 10)),
		i.ES.Index.WithRefresh("true"),
	)
	if err != nil {
		return fmt.Errorf("index course %d: %w", course.ID, err)
	}
	defer res.Body.Close()
	return responseError(res)
}

func (i *Index) DeleteCourse(ctx context.Context, id uint) error {
	if !i.Enabled() {
		return nil
	}
	res, err := i.ES.Delete(CoursesIndex, strconv.FormatUint(uint64(id), 10),
		i.ES.Delete.WithContext(ctx),
		i.ES.Delete.WithRefresh("true"))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return nil
	}
	return responseError(res)
}

// CourseQuery matches the text against title (boosted) and description, case-insensitively.
func CourseQuery(q string) map[string]interface{} {
	wildcard := func(field string, boost float64) map[string]interface{} {
		return map[string]interface{}{
			"wildcard": map[string]interface{}{
				field: map[string]interface{}{
					"value":            "*" + q + "*",
					"case_insensitive": true,
					"boost":            boost,
				},
			},
		}
	}
	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"should": []interface{}{
					wildcard("title", 2),
					wildcard("description", 1),
				},
				"minimum_should_match": 1,
			},
		},
	}
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source CourseDoc `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (i *Index) SearchCourses(ctx context.Context, q string) ([]CourseDoc, error) {
	results := make([]CourseDoc, 0)
	if !i.Enabled() {
		return results, nil
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(CourseQuery(q)); err != nil {
		return nil, err
	}
	res, err := i.ES.Search(
		i.ES.Search.WithContext(ctx),
		i.ES.Search.WithIndex(CoursesIndex),
		i.ES.Search.WithBody(&buf),
		i.ES.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if err := responseError(res); err != nil {
		return nil, err
	}
	return decodeHits(res.Body, results)
}

func decodeHits(body io.Reader, into []CourseDoc) ([]CourseDoc, error) {
	var r searchResponse
	if err := json.NewDecoder(body).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	for _, h := range r.Hits.Hits {
		into = append(into, h.Source)
	}
	return into, nil
}

func responseError(res *esapi.Response) error {
	if res.IsError() {
		return fmt.Errorf("elasticsearch error: %s", res.String())
	}
	return nil
}
