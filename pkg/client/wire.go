package client

import (
	"encoding/json"
	"fmt"
)

// The raylight wire shapes below follow the SAP BO 4.x REST API. The
// service's actual contract is version-dependent and only approximately
// documented, so decoding is defensive: identifiers arrive as strings or
// numbers depending on the server build, and single-element collections are
// sometimes flattened to a bare object instead of a one-element array.

// flexID decodes a JSON string or number into a string.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty id")
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id is neither string nor number: %w", err)
	}
	*f = flexID(n.String())
	return nil
}

// logonRequest is the body for POST /logon/long.
type logonRequest struct {
	UserName string `json:"userName"`
	Password string `json:"password"`
	Auth     string `json:"auth"`
}

// logonResponse is the fallback body shape when the token is not returned
// in the X-SAP-LogonToken header.
type logonResponse struct {
	LogonToken string `json:"logonToken"`
}

// Universe is one catalog entry from GET /raylight/v1/universes.
type Universe struct {
	ID   flexID `json:"id"`
	Name string `json:"name"`
}

// universeEntries tolerates the single-object flattening of the universe
// collection.
type universeEntries []Universe

func (u *universeEntries) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '[' {
		var list []Universe
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*u = list
		return nil
	}
	var one Universe
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*u = universeEntries{one}
	return nil
}

// universesResponse is the envelope for the universe list.
type universesResponse struct {
	Universes struct {
		Universe universeEntries `json:"universe"`
	} `json:"universes"`
}

// OutlineObject is a leaf of the universe outline: a queryable dimension,
// measure, or attribute.
type OutlineObject struct {
	ID          string
	Name        string
	TechType    string
	DataType    string
	Description string
}

// outlineNode is one node of the outline tree returned by
// GET /raylight/v1/universes/{id}?aggregated=true. Folders carry children
// under nodes.node; leaves carry a techType.
type outlineNode struct {
	ID          flexID        `json:"id"`
	Name        string        `json:"name"`
	TechType    string        `json:"techType"`
	DataType    string        `json:"dataType"`
	Description string        `json:"description"`
	Nodes       *outlineNodes `json:"nodes"`
}

// outlineNodes tolerates the single-object flattening of node collections.
type outlineNodes struct {
	Node []outlineNode `json:"node"`
}

func (o *outlineNodes) UnmarshalJSON(data []byte) error {
	var envelope struct {
		Node json.RawMessage `json:"node"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return err
	}
	if len(envelope.Node) == 0 {
		return nil
	}
	if envelope.Node[0] == '[' {
		return json.Unmarshal(envelope.Node, &o.Node)
	}
	var one outlineNode
	if err := json.Unmarshal(envelope.Node, &one); err != nil {
		return err
	}
	o.Node = []outlineNode{one}
	return nil
}

// outlineResponse is the envelope for the universe outline.
type outlineResponse struct {
	Nodes outlineNodes `json:"nodes"`
}

// flatten walks the outline tree collecting queryable leaves in document
// order.
func (o *outlineResponse) flatten() []OutlineObject {
	var objects []OutlineObject
	var walk func(nodes []outlineNode)
	walk = func(nodes []outlineNode) {
		for _, n := range nodes {
			switch n.TechType {
			case "Dimension", "Measure", "Attribute":
				id := string(n.ID)
				if id == "" {
					id = n.Name
				}
				objects = append(objects, OutlineObject{
					ID:          id,
					Name:        n.Name,
					TechType:    n.TechType,
					DataType:    n.DataType,
					Description: n.Description,
				})
			}
			if n.Nodes != nil {
				walk(n.Nodes.Node)
			}
		}
	}
	walk(o.Nodes.Node)
	return objects
}

// ResultObject references one universe object in a query specification.
type ResultObject struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DocumentSpec describes a transient query document.
type DocumentSpec struct {
	Name          string
	DataSourceID  string
	ResultObjects []ResultObject
}

// createDocumentRequest is the body for POST /raylight/v1/documents.
type createDocumentRequest struct {
	Document struct {
		Name  string `json:"name"`
		Query struct {
			DataSourceID  string         `json:"dataSourceId"`
			ResultObjects []ResultObject `json:"resultObjects"`
		} `json:"query"`
	} `json:"document"`
}

func newCreateDocumentRequest(spec DocumentSpec) createDocumentRequest {
	var req createDocumentRequest
	req.Document.Name = spec.Name
	req.Document.Query.DataSourceID = spec.DataSourceID
	req.Document.Query.ResultObjects = spec.ResultObjects
	return req
}

// createDocumentResponse is the envelope for the created document.
type createDocumentResponse struct {
	Document struct {
		ID flexID `json:"id"`
	} `json:"document"`
}

// flowResponse carries the result rows of a data provider flow. Flow is a
// pointer so a missing envelope is distinguishable from an empty result.
type flowResponse struct {
	Flow *flowBody `json:"flow"`
}

type flowBody struct {
	Values [][]any `json:"values"`
}
