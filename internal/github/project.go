package github

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ProjectBoard reads and updates an issue's single-select status column on a
// GitHub Projects (v2) board.
type ProjectBoard struct {
	client      *Client
	Owner       string
	Number      int
	StatusField string

	meta *projectMeta
}

type projectMeta struct {
	ProjectID string
	FieldID   string
	Options   map[string]string // lowercase name -> option id
}

// NewProjectBoard returns a board bound to project number of owner.
func NewProjectBoard(c *Client, owner string, number int, statusField string) *ProjectBoard {
	if statusField == "" {
		statusField = "Status"
	}
	return &ProjectBoard{client: c, Owner: owner, Number: number, StatusField: statusField}
}

type graphQLError struct {
	Message string `json:"message"`
}

func graphQLErr(errs []graphQLError) error {
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Message
	}
	return fmt.Errorf("graphql: %s", strings.Join(msgs, "; "))
}

// graphql runs a query through `gh api graphql`. String variables are passed
// with -f and integers with -F so gh types them correctly.
func (b *ProjectBoard) graphql(ctx context.Context, query string, vars map[string]any, out any) error {
	args := []string{"api", "graphql", "-f", "query=" + query}
	for k, v := range vars {
		switch val := v.(type) {
		case int:
			args = append(args, "-F", k+"="+strconv.Itoa(val))
		default:
			args = append(args, "-f", fmt.Sprintf("%s=%v", k, val))
		}
	}
	data, err := b.client.run(ctx, args, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse graphql response: %w", err)
	}
	return nil
}

const itemQuery = `query($url: URI!, $field: String!) {
  resource(url: $url) {
    ... on Issue {
      id
      projectItems(first: 20) {
        nodes {
          id
          project { number }
          fieldValueByName(name: $field) {
            ... on ProjectV2ItemFieldSingleSelectValue { name }
          }
        }
      }
    }
  }
}`

type itemResponse struct {
	Data struct {
		Resource struct {
			ID           string `json:"id"`
			ProjectItems struct {
				Nodes []struct {
					ID      string `json:"id"`
					Project struct {
						Number int `json:"number"`
					} `json:"project"`
					FieldValueByName *struct {
						Name string `json:"name"`
					} `json:"fieldValueByName"`
				} `json:"nodes"`
			} `json:"projectItems"`
		} `json:"resource"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

type boardItem struct {
	IssueID string
	ItemID  string
	Status  string
}

func (b *ProjectBoard) item(ctx context.Context, issueURL string) (*boardItem, error) {
	var resp itemResponse
	if err := b.graphql(ctx, itemQuery, map[string]any{"url": issueURL, "field": b.StatusField}, &resp); err != nil {
		return nil, err
	}
	if err := graphQLErr(resp.Errors); err != nil {
		return nil, err
	}
	if resp.Data.Resource.ID == "" {
		return nil, fmt.Errorf("issue not found: %s", issueURL)
	}

	it := &boardItem{IssueID: resp.Data.Resource.ID}
	for _, n := range resp.Data.Resource.ProjectItems.Nodes {
		if n.Project.Number != b.Number {
			continue
		}
		it.ItemID = n.ID
		if n.FieldValueByName != nil {
			it.Status = n.FieldValueByName.Name
		}
		break
	}
	return it, nil
}

// Status returns the issue's status column on the board, or "" when the
// issue is not on the board or has no status set.
func (b *ProjectBoard) Status(ctx context.Context, issueURL string) (string, error) {
	it, err := b.item(ctx, issueURL)
	if err != nil {
		return "", fmt.Errorf("get project status: %w", err)
	}
	return it.Status, nil
}

const projectQuery = `query($owner: String!, $number: Int!, $field: String!) {
  repositoryOwner(login: $owner) {
    ... on ProjectV2Owner {
      projectV2(number: $number) {
        id
        field(name: $field) {
          ... on ProjectV2SingleSelectField {
            id
            options { id name }
          }
        }
      }
    }
  }
}`

type projectResponse struct {
	Data struct {
		RepositoryOwner struct {
			ProjectV2 *struct {
				ID    string `json:"id"`
				Field *struct {
					ID      string `json:"id"`
					Options []struct {
						ID   string `json:"id"`
						Name string `json:"name"`
					} `json:"options"`
				} `json:"field"`
			} `json:"projectV2"`
		} `json:"repositoryOwner"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

func (b *ProjectBoard) project(ctx context.Context) (*projectMeta, error) {
	if b.meta != nil {
		return b.meta, nil
	}

	var resp projectResponse
	vars := map[string]any{"owner": b.Owner, "number": b.Number, "field": b.StatusField}
	if err := b.graphql(ctx, projectQuery, vars, &resp); err != nil {
		return nil, err
	}
	if err := graphQLErr(resp.Errors); err != nil {
		return nil, err
	}
	p := resp.Data.RepositoryOwner.ProjectV2
	if p == nil {
		return nil, fmt.Errorf("project %s/%d not found", b.Owner, b.Number)
	}
	if p.Field == nil || p.Field.ID == "" {
		return nil, fmt.Errorf("project %s/%d has no single-select field %q", b.Owner, b.Number, b.StatusField)
	}

	meta := &projectMeta{ProjectID: p.ID, FieldID: p.Field.ID, Options: map[string]string{}}
	for _, o := range p.Field.Options {
		meta.Options[strings.ToLower(o.Name)] = o.ID
	}
	b.meta = meta
	return meta, nil
}

const addItemMutation = `mutation($project: ID!, $content: ID!) {
  addProjectV2ItemById(input: {projectId: $project, contentId: $content}) {
    item { id }
  }
}`

const setStatusMutation = `mutation($project: ID!, $item: ID!, $field: ID!, $option: String!) {
  updateProjectV2ItemFieldValue(input: {projectId: $project, itemId: $item, fieldId: $field, value: {singleSelectOptionId: $option}}) {
    projectV2Item { id }
  }
}`

// SetStatus moves the issue to the named status column, adding it to the
// board first when it is not there yet.
func (b *ProjectBoard) SetStatus(ctx context.Context, issueURL, status string) error {
	if b.client.dryRun("Would set project status of %s to %q", issueURL, status) {
		return nil
	}

	meta, err := b.project(ctx)
	if err != nil {
		return fmt.Errorf("set project status: %w", err)
	}
	optionID, ok := meta.Options[strings.ToLower(status)]
	if !ok {
		return fmt.Errorf("set project status: unknown %s option %q", b.StatusField, status)
	}

	it, err := b.item(ctx, issueURL)
	if err != nil {
		return fmt.Errorf("set project status: %w", err)
	}

	if it.ItemID == "" {
		var added struct {
			Data struct {
				AddProjectV2ItemByID struct {
					Item struct {
						ID string `json:"id"`
					} `json:"item"`
				} `json:"addProjectV2ItemById"`
			} `json:"data"`
			Errors []graphQLError `json:"errors"`
		}
		vars := map[string]any{"project": meta.ProjectID, "content": it.IssueID}
		if err := b.graphql(ctx, addItemMutation, vars, &added); err != nil {
			return fmt.Errorf("add issue to project: %w", err)
		}
		if err := graphQLErr(added.Errors); err != nil {
			return fmt.Errorf("add issue to project: %w", err)
		}
		it.ItemID = added.Data.AddProjectV2ItemByID.Item.ID
	}

	var updated struct {
		Errors []graphQLError `json:"errors"`
	}
	vars := map[string]any{"project": meta.ProjectID, "item": it.ItemID, "field": meta.FieldID, "option": optionID}
	if err := b.graphql(ctx, setStatusMutation, vars, &updated); err != nil {
		return fmt.Errorf("set project status: %w", err)
	}
	return graphQLErr(updated.Errors)
}
