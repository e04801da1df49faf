package jarcheck

import (
	"archive/zip"
	"fmt"
	"path"

	"k8s.io/klog/v2"
)

// RequiredEntries 可被服务器加载的插件 jar 必须携带的资源条目
var RequiredEntries = []string{"plugin.yml", "config.yml"}

// Verify 检查产物 jar 中必备资源条目的存在性
// 缺失只作为告警返回，不判定构建失败；jar 本身无法读取才返回 error
func Verify(artifactPath string, requiredEntries []string) ([]string, error) {
	if len(requiredEntries) == 0 {
		requiredEntries = RequiredEntries
	}

	reader, err := zip.OpenReader(artifactPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact: %w", err)
	}
	defer reader.Close()

	present := make(map[string]bool)
	for _, f := range reader.File {
		// 条目按根路径的文件名比对，兼容被打进子目录的情况
		present[path.Base(f.Name)] = true
		present[f.Name] = true
	}

	var missing []string
	for _, entry := range requiredEntries {
		if !present[entry] {
			missing = append(missing, entry)
		}
	}

	if len(missing) > 0 {
		klog.Warningf("产物缺少资源条目: artifact=%s, missing=%v", artifactPath, missing)
	} else {
		klog.V(6).Infof("产物校验通过: artifact=%s", artifactPath)
	}
	return missing, nil
}
