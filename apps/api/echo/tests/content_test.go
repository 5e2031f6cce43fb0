package tests

import (
	"net/http"
	"testing"

	"github.com/darasa-app/darasa/core/content"
)

func textBody(body string) []byte {
	return []byte(`{"slot_id": "main", "kind": "text", "payload": {"body": "` + body + `"}}`)
}

func Test_contentApi_auth(t *testing.T) {
	student := studentToken(t)

	tests := []httpTest{
		{
			name:     "content requires a token",
			method:   http.MethodGet,
			path:     "/v1/lessons/l-auth/content",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "students cannot create drafts",
			method:   http.MethodPost,
			path:     "/v1/lessons/l-auth/draft",
			token:    student,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "students cannot publish",
			method:   http.MethodPost,
			path:     "/v1/versions/whatever/publish",
			token:    student,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "students cannot register assets",
			method:   http.MethodPost,
			path:     "/v1/lessons/l-auth/assets",
			body:     []byte(`{"uri": "https://cdn/x.png", "kind": "image"}`),
			token:    student,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "students cannot delete blocks",
			method:   http.MethodDelete,
			path:     "/v1/blocks/whatever",
			token:    student,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_contentApi_lifecycle(t *testing.T) {
	teacher := teacherToken(t)
	student := studentToken(t)

	// students see nothing before the first publish
	rec := do(http.MethodGet, "/v1/lessons/l1/content", student)
	checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"})}, rec)

	// teacher starts a draft
	rec = do(http.MethodPost, "/v1/lessons/l1/draft", teacher)
	if rec.Code != http.StatusCreated {
		t.Fatalf("createDraft: code = %v; body %s", rec.Code, rec.Body.String())
	}
	var draft content.LessonVersion
	decodeBody(t, rec, &draft)
	if draft.Status != content.StatusDraft {
		t.Fatalf("draft status = %v", draft.Status)
	}

	// and fills it with blocks
	var b1, b2 content.Block
	rec = do(http.MethodPost, "/v1/versions/"+draft.ID+"/blocks", teacher, textBody("one"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("addBlock: code = %v; body %s", rec.Code, rec.Body.String())
	}
	decodeBody(t, rec, &b1)
	rec = do(http.MethodPost, "/v1/versions/"+draft.ID+"/blocks", teacher, textBody("two"))
	decodeBody(t, rec, &b2)

	// the draft stays invisible to students
	rec = do(http.MethodGet, "/v1/lessons/l1/content", student)
	if rec.Code != http.StatusNotFound {
		t.Errorf("draft leaked to a student: code = %v", rec.Code)
	}
	// but renders for the teacher
	rec = do(http.MethodGet, "/v1/lessons/l1/content", teacher)
	if rec.Code != http.StatusOK {
		t.Fatalf("teacher content: code = %v; body %s", rec.Code, rec.Body.String())
	}
	var rnd content.Renderable
	decodeBody(t, rec, &rnd)
	if rnd.Version.ID != draft.ID {
		t.Errorf("teacher got version %q, want the draft %q", rnd.Version.ID, draft.ID)
	}

	// reorder with mismatched ids is rejected outright
	rec = do(http.MethodPut, "/v1/versions/"+draft.ID+"/slots/main/order", teacher,
		marchallObj(t, content.SlotOrder{BlockIDs: []string{b2.ID, "nope"}}))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad reorder: code = %v; body %s", rec.Code, rec.Body.String())
	}

	// a full permutation goes through
	rec = do(http.MethodPut, "/v1/versions/"+draft.ID+"/slots/main/order", teacher,
		marchallObj(t, content.SlotOrder{BlockIDs: []string{b2.ID, b1.ID}}))
	if rec.Code != http.StatusOK {
		t.Fatalf("reorder: code = %v; body %s", rec.Code, rec.Body.String())
	}

	// publish goes live
	rec = do(http.MethodPost, "/v1/versions/"+draft.ID+"/publish", teacher)
	if rec.Code != http.StatusOK {
		t.Fatalf("publish: code = %v; body %s", rec.Code, rec.Body.String())
	}
	var pub content.LessonVersion
	decodeBody(t, rec, &pub)
	if pub.VersionNumber != 1 {
		t.Errorf("version number = %d, want 1", pub.VersionNumber)
	}

	// students now see the published blocks in order: two, one
	rec = do(http.MethodGet, "/v1/lessons/l1/content", student)
	if rec.Code != http.StatusOK {
		t.Fatalf("student content: code = %v; body %s", rec.Code, rec.Body.String())
	}
	decodeBody(t, rec, &rnd)
	if len(rnd.Slots) != 1 || len(rnd.Slots[0].Blocks) != 2 {
		t.Fatalf("unexpected renderable shape: %s", rec.Body.String())
	}
	if got := rnd.Slots[0].Blocks[0].Payload.(content.TextPayload).Body; got != "two" {
		t.Errorf("first block body = %q, want %q", got, "two")
	}

	// published content is read-only
	rec = do(http.MethodPost, "/v1/versions/"+draft.ID+"/blocks", teacher, textBody("late"))
	if rec.Code != http.StatusConflict {
		t.Errorf("edit after publish: code = %v; body %s", rec.Code, rec.Body.String())
	}
	rec = do(http.MethodPost, "/v1/versions/"+draft.ID+"/publish", teacher)
	if rec.Code != http.StatusConflict {
		t.Errorf("double publish: code = %v; body %s", rec.Code, rec.Body.String())
	}
}

func Test_contentApi_blockEditing(t *testing.T) {
	teacher := teacherToken(t)

	rec := do(http.MethodPost, "/v1/lessons/l2/draft", teacher)
	var draft content.LessonVersion
	decodeBody(t, rec, &draft)

	// two-slot layout
	rec = do(http.MethodPut, "/v1/versions/"+draft.ID+"/layout", teacher,
		[]byte(`{"slots": [{"id": "main"}, {"id": "sidebar"}]}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("setLayout: code = %v; body %s", rec.Code, rec.Body.String())
	}

	var b1, b2 content.Block
	rec = do(http.MethodPost, "/v1/versions/"+draft.ID+"/blocks", teacher, textBody("one"))
	decodeBody(t, rec, &b1)
	rec = do(http.MethodPost, "/v1/versions/"+draft.ID+"/blocks", teacher, textBody("two"))
	decodeBody(t, rec, &b2)

	t.Run("update", func(t *testing.T) {
		rec := do(http.MethodPut, "/v1/blocks/"+b1.ID, teacher, []byte(`{"payload": {"body": "one, revised"}}`))
		if rec.Code != http.StatusOK {
			t.Fatalf("updateBlock: code = %v; body %s", rec.Code, rec.Body.String())
		}
		var got content.Block
		decodeBody(t, rec, &got)
		if got.Payload.(content.TextPayload).Body != "one, revised" {
			t.Errorf("payload not updated: %s", rec.Body.String())
		}
	})

	t.Run("move across slots", func(t *testing.T) {
		rec := do(http.MethodPost, "/v1/blocks/"+b2.ID+"/move", teacher, []byte(`{"slot_id": "sidebar", "index": 0}`))
		if rec.Code != http.StatusOK {
			t.Fatalf("moveBlock: code = %v; body %s", rec.Code, rec.Body.String())
		}
		var got content.Block
		decodeBody(t, rec, &got)
		if got.SlotID != "sidebar" || got.OrderIndex != 0 {
			t.Errorf("moved to (%s, %d), want (sidebar, 0)", got.SlotID, got.OrderIndex)
		}
	})

	t.Run("move to an undeclared slot", func(t *testing.T) {
		rec := do(http.MethodPost, "/v1/blocks/"+b2.ID+"/move", teacher, []byte(`{"slot_id": "footer", "index": 0}`))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("code = %v; body %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("stale revision conflicts", func(t *testing.T) {
		rec := do(http.MethodPut, "/v1/blocks/"+b1.ID, teacher, []byte(`{"payload": {"body": "late"}, "revision": 1}`))
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: "this lesson was edited elsewhere; reload and try again"}),
		}, rec)
	})

	t.Run("delete", func(t *testing.T) {
		rec := do(http.MethodDelete, "/v1/blocks/"+b1.ID, teacher)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("deleteBlock: code = %v; body %s", rec.Code, rec.Body.String())
		}
		rec = do(http.MethodDelete, "/v1/blocks/"+b1.ID, teacher)
		if rec.Code != http.StatusNotFound {
			t.Errorf("second delete: code = %v", rec.Code)
		}
	})
}

func Test_contentApi_validation(t *testing.T) {
	teacher := teacherToken(t)

	rec := do(http.MethodPost, "/v1/lessons/l3/draft", teacher)
	var draft content.LessonVersion
	decodeBody(t, rec, &draft)

	tests := []httpTest{
		{
			name:     "unknown block kind",
			method:   http.MethodPost,
			path:     "/v1/versions/" + draft.ID + "/blocks",
			body:     []byte(`{"slot_id": "main", "kind": "hologram", "payload": {}}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"kind": "invalid block kind"}),
		},
		{
			name:     "missing slot id",
			method:   http.MethodPost,
			path:     "/v1/versions/" + draft.ID + "/blocks",
			body:     []byte(`{"kind": "text", "payload": {"body": "x"}}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"slot_id": "this field is required"}),
		},
		{
			name:     "unknown asset kind",
			method:   http.MethodPost,
			path:     "/v1/lessons/l3/assets",
			body:     []byte(`{"uri": "https://cdn/x.png", "kind": "sticker"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"kind": "invalid asset kind"}),
		},
		{
			name:     "empty layout",
			method:   http.MethodPut,
			path:     "/v1/versions/" + draft.ID + "/layout",
			body:     []byte(`{"slots": []}`),
			wantCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, teacher, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_contentApi_assets(t *testing.T) {
	teacher := teacherToken(t)

	rec := do(http.MethodGet, "/v1/lessons/l4/assets", teacher)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: []byte(`[]`)}, rec)

	rec = do(http.MethodPost, "/v1/lessons/l4/assets", teacher, []byte(`{"uri": "https://cdn/cover.png", "kind": "image"}`))
	if rec.Code != http.StatusCreated {
		t.Fatalf("registerAsset: code = %v; body %s", rec.Code, rec.Body.String())
	}
	var asset content.Asset
	decodeBody(t, rec, &asset)
	if asset.VersionID != nil {
		t.Errorf("expected a lesson-level asset, got version %q", *asset.VersionID)
	}

	rec = do(http.MethodGet, "/v1/lessons/l4/assets", teacher)
	var assets []content.Asset
	decodeBody(t, rec, &assets)
	if len(assets) != 1 || assets[0].ID != asset.ID {
		t.Errorf("unexpected asset listing: %s", rec.Body.String())
	}
}
