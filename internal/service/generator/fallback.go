package generator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/craftforge/backend/internal/pkg/fileops"
	"k8s.io/klog/v2"
)

// 兜底生成器：LLM 不可用或输出不合规时，根据需求里的关键词
// 产出一个最小但保证可编译的插件骨架
// 这是系统对抗 LLM 不可靠性的最后防线，产物必须永远能通过 Maven 构建

var nonClassChars = regexp.MustCompile(`[^a-zA-Z0-9]`)

// fallbackGenerate 生成兜底文件批次
func fallbackGenerate(name, prompt string) []fileops.FileAction {
	className := SanitizeClassName(name)
	packageName := "com.craftforge." + strings.ToLower(className)
	packagePath := strings.ReplaceAll(packageName, ".", "/")

	lower := strings.ToLower(prompt)
	wantsJoinListener := strings.Contains(lower, "join") ||
		strings.Contains(lower, "welcome") ||
		strings.Contains(lower, "greet")

	mainJava := fallbackMainClass(packageName, className, wantsJoinListener)
	manifest := fmt.Sprintf("name: %s\nversion: 1.0.0\nmain: %s.%s\napi-version: '1.20'\ndescription: Generated plugin\n",
		className, packageName, className)
	settings := "# Default configuration\nenabled: true\n"
	if wantsJoinListener {
		settings += "join-message: '&aWelcome, %player%!'\n"
	}

	klog.V(6).Infof("使用兜底生成器: name=%s, class=%s, joinListener=%v", name, className, wantsJoinListener)
	return []fileops.FileAction{
		fileops.NewCreate(fmt.Sprintf("src/main/java/%s/%s.java", packagePath, className), mainJava),
		fileops.NewCreate("src/main/resources/plugin.yml", manifest),
		fileops.NewCreate("src/main/resources/config.yml", settings),
	}
}

// SanitizeClassName 将项目名转为合法的 Java 类名
func SanitizeClassName(name string) string {
	cleaned := nonClassChars.ReplaceAllString(name, "")
	if cleaned == "" {
		cleaned = "GeneratedPlugin"
	}
	// 类名不能以数字开头
	if cleaned[0] >= '0' && cleaned[0] <= '9' {
		cleaned = "P" + cleaned
	}
	return strings.ToUpper(cleaned[:1]) + cleaned[1:]
}

func fallbackMainClass(packageName, className string, joinListener bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "package %s;\n\n", packageName)
	b.WriteString("import org.bukkit.plugin.java.JavaPlugin;\n")
	if joinListener {
		b.WriteString("import org.bukkit.ChatColor;\n")
		b.WriteString("import org.bukkit.event.EventHandler;\n")
		b.WriteString("import org.bukkit.event.Listener;\n")
		b.WriteString("import org.bukkit.event.player.PlayerJoinEvent;\n")
	}
	b.WriteString("\n")
	if joinListener {
		fmt.Fprintf(&b, "public class %s extends JavaPlugin implements Listener {\n\n", className)
	} else {
		fmt.Fprintf(&b, "public class %s extends JavaPlugin {\n\n", className)
	}
	b.WriteString("    @Override\n    public void onEnable() {\n")
	b.WriteString("        saveDefaultConfig();\n")
	if joinListener {
		b.WriteString("        getServer().getPluginManager().registerEvents(this, this);\n")
	}
	fmt.Fprintf(&b, "        getLogger().info(\"%s enabled\");\n", className)
	b.WriteString("    }\n\n")
	b.WriteString("    @Override\n    public void onDisable() {\n")
	fmt.Fprintf(&b, "        getLogger().info(\"%s disabled\");\n", className)
	b.WriteString("    }\n")
	if joinListener {
		b.WriteString("\n    @EventHandler\n")
		b.WriteString("    public void onPlayerJoin(PlayerJoinEvent event) {\n")
		b.WriteString("        String message = getConfig().getString(\"join-message\", \"&aWelcome, %player%!\");\n")
		b.WriteString("        message = message.replace(\"%player%\", event.getPlayer().getName());\n")
		b.WriteString("        event.getPlayer().sendMessage(ChatColor.translateAlternateColorCodes('&', message));\n")
		b.WriteString("    }\n")
	}
	b.WriteString("}\n")
	return b.String()
}
