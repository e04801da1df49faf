package fileops

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"k8s.io/klog/v2"
)

// ResourceDir Maven 约定的资源目录，plugin.yml/config.yml 必须位于其中才会被打进 jar
const ResourceDir = "src/main/resources"

// 需要位置校正的插件资源文件
var pluginResourceNames = map[string]bool{
	"plugin.yml": true,
	"config.yml": true,
}

// CorrectResourceLocations 资源位置校正
// 扫描项目树，发现被放在资源目录之外的 plugin.yml/config.yml 时，
// 复制（不是移动）一份到 src/main/resources 下，并返回是否需要重新编译
func CorrectResourceLocations(rootPath string) (copied int, needsRecompilation bool) {
	resourceRoot := filepath.Join(rootPath, filepath.FromSlash(ResourceDir))

	_ = filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		name := d.Name()
		if !pluginResourceNames[name] {
			return nil
		}
		// 已经在资源目录内的不处理
		if strings.HasPrefix(path, resourceRoot+string(filepath.Separator)) {
			return nil
		}
		// target 下的是构建产物，不处理
		if strings.Contains(path, string(filepath.Separator)+"target"+string(filepath.Separator)) {
			return nil
		}

		dest := filepath.Join(resourceRoot, name)
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			klog.Errorf("读取资源文件失败: %s, err=%v", path, readErr)
			return nil
		}
		if mkErr := os.MkdirAll(resourceRoot, 0755); mkErr != nil {
			klog.Errorf("创建资源目录失败: %s, err=%v", resourceRoot, mkErr)
			return nil
		}
		if writeErr := os.WriteFile(dest, data, 0644); writeErr != nil {
			klog.Errorf("复制资源文件失败: %s -> %s, err=%v", path, dest, writeErr)
			return nil
		}
		klog.V(6).Infof("资源位置校正: %s -> %s", path, dest)
		copied++
		needsRecompilation = true
		return nil
	})

	return copied, needsRecompilation
}

// EnsureResourceDeclaration 确保构建描述文件声明了资源目录
// pom.xml 缺少 <resources> 声明时做文本级补丁，插入到 <build> 节内；
// 返回是否做了修改
func EnsureResourceDeclaration(pomPath string) (bool, error) {
	data, err := os.ReadFile(pomPath)
	if err != nil {
		return false, err
	}
	content := string(data)

	if strings.Contains(content, "<resources>") {
		return false, nil
	}

	decl := "        <resources>\n" +
		"            <resource>\n" +
		"                <directory>" + ResourceDir + "</directory>\n" +
		"            </resource>\n" +
		"        </resources>\n"

	var patched string
	if idx := strings.Index(content, "<build>"); idx >= 0 {
		insertAt := idx + len("<build>")
		patched = content[:insertAt] + "\n" + decl + content[insertAt:]
	} else if idx := strings.Index(content, "</project>"); idx >= 0 {
		patched = content[:idx] + "    <build>\n" + decl + "    </build>\n" + content[idx:]
	} else {
		// 不是可识别的 pom，不动它
		return false, nil
	}

	if err := os.WriteFile(pomPath, []byte(patched), 0644); err != nil {
		return false, err
	}
	klog.V(6).Infof("已补丁资源目录声明: %s", pomPath)
	return true, nil
}
