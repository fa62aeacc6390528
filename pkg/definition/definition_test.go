package definition_test

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-inlineform/pkg/definition"
	"github.com/goliatone/go-inlineform/pkg/field"
	"github.com/goliatone/go-inlineform/pkg/form"
	"github.com/goliatone/go-inlineform/pkg/inline"
	"github.com/goliatone/go-inlineform/pkg/loop"
	"github.com/goliatone/go-inlineform/pkg/testsupport"
	"github.com/goliatone/go-inlineform/pkg/upload"
	"github.com/goliatone/go-inlineform/pkg/values"
)

const productYAML = `
id: product
title: Product
endpoint: /products/{id}
uploads: products
fields:
  - path: title
    required: true
  - path: price
    kind: number
    format: currency
    min: 0
  - path: status
    kind: select
    options: [draft, published]
  - path: featured
    kind: boolean
  - path: manuals
    kind: file
    multiple: true
    accept: ".pdf"
  - path: owner.first_name
`

type fieldSummary struct {
	Path  string
	Kind  definition.Kind
	Label string
}

func summarize(def definition.Definition) []fieldSummary {
	out := make([]fieldSummary, len(def.Fields))
	for i, f := range def.Fields {
		out[i] = fieldSummary{Path: f.Path, Kind: f.Kind, Label: f.Label}
	}
	return out
}

func TestParse_YAML(t *testing.T) {
	def, err := definition.Parse([]byte(productYAML), "product.yaml")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	want := []fieldSummary{
		{Path: "title", Kind: definition.KindText, Label: "Title"},
		{Path: "price", Kind: definition.KindNumber, Label: "Price"},
		{Path: "status", Kind: definition.KindSelect, Label: "Status"},
		{Path: "featured", Kind: definition.KindBoolean, Label: "Featured"},
		{Path: "manuals", Kind: definition.KindFile, Label: "Manuals"},
		{Path: "owner.first_name", Kind: definition.KindText, Label: "First name"},
	}
	if diff := cmp.Diff(want, summarize(def)); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}
	if got := def.RecordPath("42"); got != "/products/42" {
		t.Fatalf("record path = %q", got)
	}
	if def.Source != "product.yaml" {
		t.Fatalf("source = %q", def.Source)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "empty", data: "  "},
		{name: "missing id", data: `{"fields":[{"path":"a"}]}`},
		{name: "no fields", data: `{"id":"x"}`},
		{name: "duplicate path", data: `{"id":"x","fields":[{"path":"a"},{"path":"a"}]}`},
		{name: "unknown kind", data: `{"id":"x","fields":[{"path":"a","kind":"slider"}]}`},
		{name: "select without options", data: `{"id":"x","fields":[{"path":"a","kind":"select"}]}`},
		{name: "bad visibility rule", data: `{"id":"x","fields":[{"path":"a","visibleWhen":"b = 1"}]}`},
		{name: "garbage", data: "id: [unterminated"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := definition.Parse([]byte(tt.data), "test"); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadFS(t *testing.T) {
	fsys := fstest.MapFS{
		"forms/product.yaml": {Data: []byte(productYAML)},
		"forms/people.json": {Data: []byte(`[
			{"id": "person", "fields": [{"path": "name"}]},
			{"id": "team", "fields": [{"path": "members", "kind": "autocomplete", "options": ["ann", "bob"]}]}
		]`)},
		"forms/README.md": {Data: []byte("ignored")},
	}
	store, err := definition.LoadFS(fsys)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff([]string{"person", "product", "team"}, store.IDs()); diff != "" {
		t.Fatalf("ids mismatch (-want +got):\n%s", diff)
	}

	fsys["forms/dup.json"] = &fstest.MapFile{Data: []byte(`{"id": "person", "fields": [{"path": "x"}]}`)}
	if _, err := definition.LoadFS(fsys); err == nil {
		t.Fatalf("expected duplicate id error")
	}
}

const usersOpenAPI = `
openapi: 3.0.3
info:
  title: Users
  version: "1"
paths:
  /users/{userId}:
    patch:
      operationId: updateUser
      summary: Edit user
      requestBody:
        content:
          application/json:
            schema:
              type: object
              required: [name]
              properties:
                name: {type: string}
                bio: {type: string, maxLength: 2000}
                age: {type: integer, minimum: 0, maximum: 130}
                role: {type: string, enum: [admin, editor]}
                active: {type: boolean}
                born: {type: string, format: date}
                id: {type: string, readOnly: true}
                avatar:
                  type: string
                  format: uri
                  x-inlineform: {kind: image, label: Profile picture}
                address:
                  type: object
                  properties:
                    city: {type: string}
      responses:
        "200":
          description: ok
`

func TestFromOpenAPI(t *testing.T) {
	def, err := definition.FromOpenAPI(context.Background(), []byte(usersOpenAPI), "updateUser")
	if err != nil {
		t.Fatalf("from openapi: %v", err)
	}

	want := []fieldSummary{
		{Path: "active", Kind: definition.KindBoolean, Label: "Active"},
		{Path: "address.city", Kind: definition.KindText, Label: "City"},
		{Path: "age", Kind: definition.KindNumber, Label: "Age"},
		{Path: "avatar", Kind: definition.KindImage, Label: "Profile picture"},
		{Path: "bio", Kind: definition.KindTextarea, Label: "Bio"},
		{Path: "born", Kind: definition.KindDate, Label: "Born"},
		{Path: "name", Kind: definition.KindText, Label: "Name"},
		{Path: "role", Kind: definition.KindSelect, Label: "Role"},
	}
	if diff := cmp.Diff(want, summarize(def)); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}
	if def.Endpoint != "/users/{id}" || def.Title != "Edit user" {
		t.Fatalf("endpoint %q title %q", def.Endpoint, def.Title)
	}
	name, _ := def.Field("name")
	age, _ := def.Field("age")
	if !name.Required || age.Max == nil || *age.Max != 130 {
		t.Fatalf("constraints not carried over: %+v %+v", name, age)
	}

	_, err = definition.FromOpenAPI(context.Background(), []byte(usersOpenAPI), "deleteUser")
	if !errors.Is(err, definition.ErrOperationNotFound) {
		t.Fatalf("err = %v, want ErrOperationNotFound", err)
	}
}

const lintOpenAPI = `
openapi: 3.0.3
info: {title: Lint, version: "1"}
paths:
  /items/{id}:
    put:
      operationId: updateItem
      requestBody:
        content:
          application/json:
            schema:
              type: object
              properties:
                name:
                  type: string
                  x-inlineform: {kind: txt}
                photo:
                  type: string
                  x-inlineform: {kind: image, width: 40, multiple: "yes"}
                summary:
                  type: string
                  x-inlineform: {visibleWhen: "status =="}
                tags:
                  type: array
                  items:
                    type: string
                    x-inlineform: chips
      responses:
        "200": {description: ok}
`

func TestLintOpenAPI(t *testing.T) {
	issues, err := definition.LintOpenAPI(context.Background(), []byte(lintOpenAPI))
	if err != nil {
		t.Fatalf("lint: %v", err)
	}
	want := []definition.Issue{
		{Path: "updateItem > requestBody > properties.name", Message: `unknown kind "txt"`},
		{Path: "updateItem > requestBody > properties.photo", Message: `unsupported key "width" (supported: accept, format, kind, label, length, limit, multiple, prefix, visibleWhen)`},
		{Path: "updateItem > requestBody > properties.photo", Message: `value for "multiple" must be a boolean (got string)`},
		{Path: "updateItem > requestBody > properties.summary", Message: "visibility: missing value after operator"},
		{Path: "updateItem > requestBody > properties.tags > items", Message: "x-inlineform must be an object, found string"},
	}
	if diff := cmp.Diff(want, issues); diff != "" {
		t.Fatalf("issues mismatch (-want +got):\n%s", diff)
	}

	clean, err := definition.LintOpenAPI(context.Background(), []byte(usersOpenAPI))
	if err != nil {
		t.Fatalf("lint: %v", err)
	}
	if len(clean) != 0 {
		t.Fatalf("unexpected issues: %+v", clean)
	}
}

func TestBind_CreatesEditorsAndSubmits(t *testing.T) {
	def, err := definition.Parse([]byte(productYAML), "product.yaml")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	lp := loop.New()
	persister := testsupport.NewRecordingPersister()
	initial := def.Defaults()
	_ = values.Set(initial, "price", 10.0)
	f, _ := inline.NewForm(lp, persister.Persist, inline.WithFormOptions(
		form.WithInitialValues(initial),
		form.WithValidator(def.Validator()),
	))
	manager := upload.NewManager(lp, &testsupport.FakeTransport{})

	if _, err := definition.Bind(f, def, nil); !errors.Is(err, definition.ErrNoUploadManager) {
		t.Fatalf("bind without manager: %v", err)
	}

	var bound *definition.Bound
	testsupport.Do(lp, func() { bound, err = definition.Bind(f, def, manager) })
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	defer testsupport.Do(lp, bound.Close)

	kinds := map[string]string{}
	for _, b := range bound.Bindings {
		switch b.Editor.(type) {
		case *field.TextField:
			kinds[b.Spec.Path] = "text"
		case *field.NumberField:
			kinds[b.Spec.Path] = "number"
		case *field.SelectField:
			kinds[b.Spec.Path] = "select"
		case *field.RadioGroup:
			kinds[b.Spec.Path] = "radio"
		case *upload.FileField:
			kinds[b.Spec.Path] = "file"
		}
	}
	wantKinds := map[string]string{
		"title": "text", "price": "number", "status": "select",
		"featured": "radio", "manuals": "file", "owner.first_name": "text",
	}
	if diff := cmp.Diff(wantKinds, kinds); diff != "" {
		t.Fatalf("editor kinds mismatch (-want +got):\n%s", diff)
	}

	title, _ := bound.Get("title")
	text := title.Editor.(*field.TextField)
	testsupport.Do(lp, func() {
		_ = text.Input("Lamp")
		_ = text.Commit()
	})
	testsupport.Settle(t, lp, func() bool { return f.SubmitCount() == 1 && !f.IsSubmitting() })

	want := []map[string]any{{"title": "Lamp"}}
	if diff := cmp.Diff(want, persister.Patches()); diff != "" {
		t.Fatalf("patches mismatch (-want +got):\n%s", diff)
	}
}

func TestCheck(t *testing.T) {
	def, err := definition.Parse([]byte(productYAML), "product.yaml")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	tree := values.Tree{
		"title":    "  ",
		"price":    -5.0,
		"status":   "archived",
		"featured": true,
	}
	got := definition.Check(def, tree)
	want := definition.Result{
		Valid: false,
		Issues: []definition.Issue{
			{Path: "title", Message: "is required"},
			{Path: "price", Message: "is below the minimum"},
			{Path: "status", Message: "is not one of the options"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}

	tree["title"], tree["price"], tree["status"] = "Lamp", "$1,200", "draft"
	if got := definition.Check(def, tree); !got.Valid {
		t.Fatalf("expected valid, got %+v", got.Issues)
	}
}

func TestCheck_SkipsHiddenFields(t *testing.T) {
	def, err := definition.Parse([]byte(`{
		"id": "customer",
		"fields": [
			{"path": "kind", "kind": "select", "options": ["person", "company"]},
			{"path": "vat", "required": true, "visibleWhen": "kind == company"}
		]
	}`), "customer.json")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if got := definition.Check(def, values.Tree{"kind": "person"}); !got.Valid {
		t.Fatalf("hidden field was checked: %+v", got.Issues)
	}
	got := definition.Check(def, values.Tree{"kind": "company"})
	want := []definition.Issue{{Path: "vat", Message: "is required"}}
	if diff := cmp.Diff(want, got.Issues); diff != "" {
		t.Fatalf("issues mismatch (-want +got):\n%s", diff)
	}
}
