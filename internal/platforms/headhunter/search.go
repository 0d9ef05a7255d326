package headhunter

import (
	"context"
	"fmt"
	"net/url"
	"reflect"
	"strconv"

	"github.com/mitchellh/mapstructure"
)

const (
	SearchPath = "/vacancies"

	scheduleRemote = "remote"
)

type SearchParams struct {
	Text string `yaml:"text"`
	// hhparam is a custom tag for repeated parameters, see buildParams.
	Areas      []int    `hhparam:"area"`
	OrderBy    string   `yaml:"order_by"`
	Schedules  []string `hhparam:"schedule"`
	PerPage    string   `yaml:"per_page"`
	Experience string   `yaml:"experience"`
	Period     uint     `yaml:"period"`
	Salary     uint     `yaml:"salary"`
}

// Search returns every vacancy matching params.
func (c *Client) Search(ctx context.Context, params *SearchParams) (*Vacancies, error) {
	var vacancies []*Vacancy

	// Set per_page max as possible. It should be faster.
	if params.PerPage == "" {
		params.PerPage = perPage
	}

	items, err := c.GetItems(ctx, c.APIURL+SearchPath, buildParams(params))
	if err != nil {
		return nil, err
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &vacancies,
		TagName: "json",
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(items); err != nil {
		return nil, fmt.Errorf("decode vacancies: %w", err)
	}

	return &Vacancies{Items: vacancies}, nil
}

func buildParams(params *SearchParams) url.Values {
	q := url.Values{}
	value := reflect.ValueOf(params).Elem()
	for _, field := range reflect.VisibleFields(value.Type()) {
		// Our custom tag is used here.
		key := field.Tag.Get("hhparam")
		if key == "" {
			// Fall back to the default tag if ours does not exist.
			key = field.Tag.Get("yaml")
		}

		switch v := value.FieldByIndex(field.Index).Interface().(type) {
		case []int:
			for _, item := range v {
				q.Add(key, strconv.Itoa(item))
			}
		case []string:
			for _, item := range v {
				q.Add(key, item)
			}
		default:
			s := fmt.Sprintf("%v", v)
			if s != "" && s != "0" {
				q.Set(key, s)
			}
		}
	}

	return q
}
