package maven

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"k8s.io/klog/v2"
)

var nonIdentChars = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// EnsurePom 项目根目录没有 pom.xml 时生成一个最小可用的构建描述
// artifactId 由项目目录名派生，groupId 使用配置的命名空间前缀
func (r *MavenRunner) EnsurePom(rootPath string) error {
	pomPath := filepath.Join(rootPath, "pom.xml")
	if _, err := os.Stat(pomPath); err == nil {
		return nil
	}

	name := SanitizeArtifactID(filepath.Base(rootPath))
	pom := minimalPom(r.GroupID, name)
	if err := os.WriteFile(pomPath, []byte(pom), 0644); err != nil {
		return fmt.Errorf("failed to write pom.xml: %w", err)
	}
	klog.V(6).Infof("已生成最小 pom.xml: path=%s, artifactId=%s", pomPath, name)
	return nil
}

// SanitizeArtifactID 将项目名转为合法的 Maven artifactId
func SanitizeArtifactID(name string) string {
	cleaned := nonIdentChars.ReplaceAllString(name, "-")
	cleaned = strings.Trim(cleaned, "-")
	cleaned = strings.ToLower(cleaned)
	if cleaned == "" {
		cleaned = "plugin"
	}
	return cleaned
}

func minimalPom(groupID, artifactID string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<project xmlns="http://maven.apache.org/POM/4.0.0"
         xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"
         xsi:schemaLocation="http://maven.apache.org/POM/4.0.0 http://maven.apache.org/xsd/maven-4.0.0.xsd">
    <modelVersion>4.0.0</modelVersion>

    <groupId>%s.%s</groupId>
    <artifactId>%s</artifactId>
    <version>1.0.0</version>
    <packaging>jar</packaging>

    <properties>
        <maven.compiler.source>17</maven.compiler.source>
        <maven.compiler.target>17</maven.compiler.target>
        <project.build.sourceEncoding>UTF-8</project.build.sourceEncoding>
    </properties>

    <repositories>
        <repository>
            <id>spigot-repo</id>
            <url>https://hub.spigotmc.org/nexus/content/repositories/snapshots/</url>
        </repository>
    </repositories>

    <dependencies>
        <dependency>
            <groupId>org.spigotmc</groupId>
            <artifactId>spigot-api</artifactId>
            <version>1.20.4-R0.1-SNAPSHOT</version>
            <scope>provided</scope>
        </dependency>
    </dependencies>

    <build>
        <resources>
            <resource>
                <directory>src/main/resources</directory>
            </resource>
        </resources>
    </build>
</project>
`, groupID, artifactID, artifactID)
}
