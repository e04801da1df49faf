package generator

import (
	"testing"

	"github.com/craftforge/backend/internal/pkg/fileops"
)

const validPlan = `{
  "createdFiles": [
    {"path": "src/main/java/com/craftforge/demo/Demo.java", "content": "public class Demo extends JavaPlugin {}"},
    {"path": "src/main/resources/plugin.yml", "content": "name: Demo"}
  ],
  "modifiedFiles": [
    {"path": "pom.xml", "content": "<project></project>"}
  ],
  "deletedFiles": ["obsolete.txt"]
}`

func TestParseActionsPlainJSON(t *testing.T) {
	actions, err := parseActions(validPlan)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(actions) != 4 {
		t.Fatalf("expected 4 actions, got %d: %v", len(actions), actions)
	}

	counts := map[fileops.ActionType]int{}
	for _, a := range actions {
		counts[a.Type]++
	}
	if counts[fileops.ActionCreate] != 2 || counts[fileops.ActionModify] != 1 || counts[fileops.ActionDelete] != 1 {
		t.Fatalf("unexpected action breakdown: %v", counts)
	}
}

func TestParseActionsFencedJSON(t *testing.T) {
	raw := "Here is the plan:\n```json\n" + validPlan + "\n```\nDone."
	actions, err := parseActions(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(actions) != 4 {
		t.Fatalf("expected 4 actions, got %d", len(actions))
	}
}

func TestParseActionsBraceSpan(t *testing.T) {
	raw := "Sure! " + validPlan + " Hope that helps."
	actions, err := parseActions(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(actions) != 4 {
		t.Fatalf("expected 4 actions, got %d", len(actions))
	}
}

func TestParseActionsDeletedFileObjects(t *testing.T) {
	raw := `{"createdFiles": [], "modifiedFiles": [], "deletedFiles": [{"path": "a.txt"}, "b.txt"]}`
	actions, err := parseActions(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(actions) != 2 {
		t.Fatalf("expected 2 delete actions, got %v", actions)
	}
	for _, a := range actions {
		if a.Type != fileops.ActionDelete {
			t.Fatalf("expected delete, got %s", a.Type)
		}
	}
}

func TestParseActionsErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"空响应", ""},
		{"纯文本", "I cannot help with that."},
		{"非法JSON", `{"createdFiles": [}`},
		{"空计划", `{"createdFiles": [], "modifiedFiles": [], "deletedFiles": []}`},
		{"路径为空的条目被忽略", `{"createdFiles": [{"path": "", "content": "x"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseActions(tt.raw); err == nil {
				t.Fatalf("expected error for %q", tt.raw)
			}
		})
	}
}

func TestValidateGeneration(t *testing.T) {
	entry := fileops.NewCreate("src/main/java/Demo.java",
		"public class Demo extends JavaPlugin {}")
	manifest := fileops.NewCreate("src/main/resources/plugin.yml", "name: Demo")

	t.Run("完整骨架", func(t *testing.T) {
		if err := validateGeneration([]fileops.FileAction{entry, manifest}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("缺少入口类", func(t *testing.T) {
		plain := fileops.NewCreate("src/main/java/Util.java", "public class Util {}")
		if err := validateGeneration([]fileops.FileAction{plain, manifest}); err == nil {
			t.Fatalf("expected error without entry point")
		}
	})

	t.Run("缺少manifest", func(t *testing.T) {
		if err := validateGeneration([]fileops.FileAction{entry}); err == nil {
			t.Fatalf("expected error without plugin.yml")
		}
	})

	t.Run("modify不算创建骨架", func(t *testing.T) {
		modEntry := fileops.NewModify("src/main/java/Demo.java",
			"public class Demo extends JavaPlugin {}")
		if err := validateGeneration([]fileops.FileAction{modEntry, manifest}); err == nil {
			t.Fatalf("expected error when entry point is only modified")
		}
	})

	t.Run("反斜杠路径的manifest", func(t *testing.T) {
		winManifest := fileops.NewCreate(`src\main\resources\plugin.yml`, "name: Demo")
		if err := validateGeneration([]fileops.FileAction{entry, winManifest}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}
